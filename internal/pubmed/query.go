package pubmed

import (
	"fmt"
	"strings"
	"time"
)

// pubDateFormat is the E-utilities publication date format.
const pubDateFormat = "2006/01/02"

// BuildDigestQuery builds the boolean search term for a weekly digest run:
// the subject terms OR'd, the journal names OR'd as exact-phrase [Journal]
// terms, an inclusive publication date range, and a hasabstract filter.
func BuildDigestQuery(subjectTerms, journalNames []string, start, end time.Time) string {
	subjects := strings.Join(subjectTerms, " OR ")
	journals := journalTerms(journalNames)
	dates := fmt.Sprintf(`("%s"[Date - Publication] : "%s"[Date - Publication])`,
		start.Format(pubDateFormat), end.Format(pubDateFormat))

	return fmt.Sprintf("(%s) AND (%s) AND %s AND hasabstract", subjects, journals, dates)
}

// topicDateFormat is the publication date format used by topic searches.
const topicDateFormat = "2006-01-02"

// BuildTopicQuery builds the search term for an ad-hoc topic exploration:
// the topic and each keyword scoped to [Title/Abstract], the journal names
// OR'd as exact-phrase [Journal] terms, and an inclusive publication
// window. An empty journalNames searches all of PubMed; a zero start or
// end skips the date filter.
func BuildTopicQuery(topic string, keywords, journalNames []string, start, end time.Time) string {
	q := topic + "[Title/Abstract]"

	terms := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, kw+"[Title/Abstract]")
		}
	}
	if len(terms) > 0 {
		q += " AND (" + strings.Join(terms, " OR ") + ")"
	}

	if len(journalNames) > 0 {
		q += " AND (" + journalTerms(journalNames) + ")"
	}

	if !start.IsZero() && !end.IsZero() {
		q += fmt.Sprintf(" AND %s:%s[Date - Publication]",
			start.Format(topicDateFormat), end.Format(topicDateFormat))
	}

	return q
}

// journalTerms wraps each journal name as an exact-phrase field-scoped term
// and joins them with OR.
func journalTerms(journalNames []string) string {
	terms := make([]string, 0, len(journalNames))
	for _, name := range journalNames {
		terms = append(terms, fmt.Sprintf(`"%s"[Journal]`, name))
	}
	return strings.Join(terms, " OR ")
}
