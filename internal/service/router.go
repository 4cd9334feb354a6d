package service

import (
	"regexp"
	"strings"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

var (
	greetingPattern  = regexp.MustCompile(`(?i)^\s*(hi|hello|hey|yo|hiya|good (morning|afternoon|evening|night)|thanks|thank you|thx|cheers|bye|goodbye|see you|how are you|how's it going|nice to meet you|ok(ay)?|cool|great)\b`)
	selfStatement    = regexp.MustCompile(`(?i)^\s*(i am|i'm|my name is|my \w+ is|i like|i love|i prefer|i enjoy|i hate|i work|i live|i study|i want|i plan|call me|remember that|please remember|always|never)\b`)
	analyticalSignal = regexp.MustCompile(`(?i)\b(compare|comparison|versus|vs\.?|better|best|worse|should|recommend|pros and cons|trade-?offs?|why|evaluate|assess|analy[sz]e|opinion|debate|controversial|argue|implications?|impact of)\b`)
)

// Router classifies a query and picks the branches to consult.
type Router struct{}

func NewRouter() *Router {
	return &Router{}
}

// Route never consults any collaborator. ForceClass and ForceDeliberation
// override the classification.
func (r *Router) Route(query string, opts domain.QueryOptions) domain.Route {
	route := r.classify(query)
	if opts.ForceClass != "" && domain.ValidQueryClass(string(opts.ForceClass)) {
		route = routeFor(opts.ForceClass, "class forced by caller")
	}
	if opts.ForceDeliberation {
		route.Deliberate = true
		route.Reason += "; deliberation forced by caller"
	}
	return route
}

func (r *Router) classify(query string) domain.Route {
	q := strings.TrimSpace(query)
	question := strings.HasSuffix(q, "?")

	switch {
	case greetingPattern.MatchString(q) && len(strings.Fields(q)) <= 6:
		return routeFor(domain.ClassConversational, "greeting or small talk")
	case !question && selfStatement.MatchString(q):
		return routeFor(domain.ClassConversational, "statement about the user")
	case analyticalSignal.MatchString(q):
		return routeFor(domain.ClassAnalytical, "comparison, recommendation or contested topic")
	default:
		return routeFor(domain.ClassFactual, "factual lookup")
	}
}

func routeFor(class domain.QueryClass, reason string) domain.Route {
	switch class {
	case domain.ClassConversational:
		return domain.Route{Class: class, Branches: []domain.Branch{domain.BranchHypothesis}, Reason: reason}
	case domain.ClassAnalytical:
		return domain.Route{Class: class, Branches: append([]domain.Branch(nil), domain.AllBranches...), Deliberate: true, Reason: reason}
	default:
		return domain.Route{Class: class, Branches: []domain.Branch{domain.BranchHighTrust, domain.BranchHypothesis}, Reason: reason}
	}
}
