// Package indexability combines the three independent robots/meta/header
// verdicts and the final HTTP status into one overall indexability verdict.
package indexability

import "github.com/masahif/sqlitecrawler/internal/model"

// Verdict is the outcome of evaluating one fetched page's indexability
// signals.
type Verdict struct {
	RobotsTxtAllows  bool
	HTMLMetaAllows   bool
	HTTPHeaderAllows bool
	OverallIndexable bool
	ReasonsBitmap    uint32
}

// Inputs are the raw signals gathered elsewhere in the pipeline: the Robots
// Cache verdict, whether that verdict came from a robots.txt that could
// actually be fetched, the presence of "noindex" in the page's meta robots
// tokens, the presence of "noindex" in its X-Robots-Tag header tokens, and
// the final HTTP status code of the fetch (after following redirects).
type Inputs struct {
	RobotsTxtAllows      bool
	RobotsTxtUnavailable bool
	MetaRobots           []string
	HeaderRobots         []string
	FinalStatusCode      int
}

// Evaluate combines the independent signals into one verdict:
//
//	overall_indexable = robots_txt_allows AND html_meta_allows AND
//	                     http_header_allows AND final_status_code IN [200,299]
func Evaluate(in Inputs) Verdict {
	htmlMetaAllows := !hasNoindex(in.MetaRobots)
	httpHeaderAllows := !hasNoindex(in.HeaderRobots)
	statusOK := in.FinalStatusCode >= 200 && in.FinalStatusCode < 300

	var reasons uint32
	if !in.RobotsTxtAllows {
		reasons |= model.ReasonRobotsDisallow
	}
	if in.RobotsTxtUnavailable {
		reasons |= model.ReasonRobotsUnavailable
	}
	if !htmlMetaAllows {
		reasons |= model.ReasonMetaNoindex
	}
	if !httpHeaderAllows {
		reasons |= model.ReasonHeaderNoindex
	}
	if !statusOK {
		reasons |= model.ReasonBadStatus
	}

	return Verdict{
		RobotsTxtAllows:  in.RobotsTxtAllows,
		HTMLMetaAllows:   htmlMetaAllows,
		HTTPHeaderAllows: httpHeaderAllows,
		OverallIndexable: in.RobotsTxtAllows && htmlMetaAllows && httpHeaderAllows && statusOK,
		ReasonsBitmap:    reasons,
	}
}

func hasNoindex(tokens []string) bool {
	for _, t := range tokens {
		if t == "noindex" {
			return true
		}
	}
	return false
}
