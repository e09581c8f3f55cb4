package documents

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsPatternEscapesWildcards(t *testing.T) {
	cases := []struct {
		term string
		want string
	}{
		{term: "INV-2603", want: `%INV-2603%`},
		{term: "50%", want: `%50\%%`},
		{term: "INV_", want: `%INV\_%`},
		{term: `C:\jobs`, want: `%C:\\jobs%`},
	}
	for _, tc := range cases {
		t.Run(tc.term, func(t *testing.T) {
			assert.Equal(t, tc.want, containsPattern(tc.term))
		})
	}
}
