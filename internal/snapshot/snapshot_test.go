package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/sitedata/internal/domain"
)

func sample() []domain.Sponsor {
	id := "gh-42"
	img := "images/sponsors/gh-42.png"
	site := "https://alice.example"
	return []domain.Sponsor{
		{ID: &id, Kind: domain.KindPublic, Name: "Alice", Image: &img, Website: &site, TotalDonated: 1500,
			Tier: domain.TierBacker, CurrencySymbol: domain.CurrencyUSD, CreatedAt: domain.NewDate(2021, 1, 15)},
		domain.Sponsor{TotalDonated: 10000, Tier: domain.TierSponsor, CurrencySymbol: domain.CurrencyUSD,
			CreatedAt: domain.NewDate(2021, 3, 20)}.Anonymize(),
	}
}

func TestSponsors_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "sponsors.yml")
	in := sample()

	require.NoError(t, WriteSponsors(path, in))
	out, err := ReadSponsors(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestSponsors_LayoutIsStable(t *testing.T) {
	b, err := encode(sample()[:1])
	require.NoError(t, err)

	want := `- id: gh-42
  kind: public
  name: Alice
  image: images/sponsors/gh-42.png
  website: https://alice.example
  total_donated: 1500
  tier: backer
  currency_symbol: $
  created_at: "2021-01-15"
`
	assert.Equal(t, want, string(b))
}

func TestWriteSponsors_InvalidRecordLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sponsors.yml")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0o644))

	bad := sample()
	bad[0].Tier = ""
	require.Error(t, WriteSponsors(path, bad))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\n", string(b))
}

func TestWriteSponsors_EmptyList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sponsors.yml")
	require.NoError(t, WriteSponsors(path, nil))

	out, err := ReadSponsors(path)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestReadSponsors_RejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sponsors.yml")
	require.NoError(t, os.WriteFile(path, []byte("- id: x\n  colour: red\n"), 0o644))

	_, err := ReadSponsors(path)
	require.Error(t, err)
	assert.True(t, domain.IsSchema(err))
}

func TestReadSponsors_Missing(t *testing.T) {
	_, err := ReadSponsors(filepath.Join(t.TempDir(), "sponsors.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestProjects_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.yml")
	desc := "A language"
	latest := "2.0.0"
	in := []domain.Project{{
		Owner: "inko-lang", Name: "inko", URL: "https://github.com/inko-lang/inko",
		Description: &desc, Stars: 10, LastRelease: &latest,
		Versions: []domain.Version{{Name: "2.0.0", Date: "2024-01-02 01:04"}, {Name: "1.2.3", Date: "2023-05-06 07:08"}},
	}}

	require.NoError(t, WriteProjects(path, in))
	var out []domain.Project
	require.NoError(t, readFile(path, &out))
	assert.Equal(t, in, out)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "license: null")
	assert.Contains(t, string(b), "2024-01-02 01:04")
}

func TestWriteProjects_RequiresIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "packages.yml")
	assert.Error(t, WriteProjects(path, []domain.Project{{Name: "inko"}}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
