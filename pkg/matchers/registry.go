package matchers

import (
	"log/slog"

	"github.com/coolbeans/citemark/pkg/markup"
)

// Default builds the ordered matcher list the analyser runs. Ordering is
// significant: anchors written by an earlier matcher exclude their text
// from later matchers via the candidate XPath.
//
// The remote citator is appended only when both its endpoint URL and API
// key are configured; absence means the capability is disabled, not an
// error.
func Default(citatorURL, citatorAPIKey string, client HTTPClient, log *slog.Logger) []markup.Matcher {
	list := []markup.Matcher{
		markup.NewMarker(MNC{}),
		markup.NewMarker(ACHPR{}),
		markup.NewMarker(Act{}),
	}
	if citatorURL != "" && citatorAPIKey != "" {
		list = append(list, NewCitator(citatorURL, citatorAPIKey, client, log))
	}
	return list
}
