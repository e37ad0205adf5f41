package kegg

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omicsflow/pathway-enrich/internal/resilience"
)

const glycolysisKGML = `<?xml version="1.0"?>
<pathway name="path:hsa00010" org="hsa" number="00010" title="Glycolysis / Gluconeogenesis"
         link="https://www.kegg.jp/kegg-bin/show_pathway?hsa00010">
  <entry id="13" name="cpd:C00031" type="compound">
    <graphics name="C00031" fgcolor="#000000" bgcolor="#FFFFFF" type="circle" x="483" y="234" width="8" height="8"/>
  </entry>
  <entry id="20" name="hsa:3098 hsa:3099" type="gene" reaction="rn:R00299">
    <graphics name="HK3, HKIII..." type="rectangle" x="483" y="286" width="46" height="17"/>
  </entry>
  <reaction id="20" name="rn:R00299 rn:R01786" type="irreversible">
    <substrate id="13" name="cpd:C00031"/>
    <product id="14" name="cpd:C00668"/>
  </reaction>
</pathway>`

func TestPathway_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get/hsa00010/kgml", r.URL.Path)
		_, _ = w.Write([]byte(glycolysisKGML))
	}))
	defer srv.Close()

	p, err := NewClient(WithBaseURL(srv.URL)).Pathway(context.Background(), "path:hsa00010")
	require.NoError(t, err)

	assert.Equal(t, "Glycolysis / Gluconeogenesis", p.Title)
	assert.Equal(t, "hsa", p.Org)
	require.Len(t, p.Entries, 2)

	cpd := p.Entries[0]
	assert.Equal(t, []string{"C00031"}, cpd.IDs())
	assert.Equal(t, "C00031", cpd.Label())
	assert.Equal(t, 483.0, cpd.Graphics[0].X)
	assert.Equal(t, 8.0, cpd.Graphics[0].Height)

	gene := p.Entries[1]
	assert.Equal(t, []string{"3098", "3099"}, gene.IDs())
	assert.Equal(t, "HK3", gene.Label())

	require.Len(t, p.Reactions, 1)
	assert.Equal(t, []string{"R00299", "R01786"}, p.Reactions[0].IDs())
	assert.Equal(t, "cpd:C00031", p.Reactions[0].Substrates[0].Name)
	assert.NotEmpty(t, p.Raw)
	assert.Equal(t, srv.URL+"/get/hsa00010/kgml", p.URL)
}

func TestPathway_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Pathway(context.Background(), "hsa99999")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
}

func TestPathway_Malformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<pathway"))
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Pathway(context.Background(), "hsa00010")
	require.Error(t, err)
	assert.False(t, resilience.IsNotFound(err))
}
