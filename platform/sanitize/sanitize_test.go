package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	cases := map[string]string{
		"  Sem   interesse ":                      "Sem interesse",
		"<b>Cliente</b> desistiu":                 "Cliente desistiu",
		"&lt;script&gt;alert(1)&lt;/script&gt;ok": "alert(1)ok",
		"Preço &amp; prazo":                       "Preço & prazo",
		"linha\num\tdois":                         "linha um dois",
		"":                                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Text(in), in)
	}
}
