package validate

import (
	"testing"

	"github.com/ppiankov/claimtrust/internal/model"
)

func TestSourceClassifier_Classify(t *testing.T) {
	config := &model.SourcesConfig{
		OfficialDomains: []string{"go.kr", "korea.kr"},
		PressDomains:    []string{"yna.co.kr", "reuters.com"},
		Overrides: []model.SourceOverride{
			{Host: "blog.reuters.com", Tier: "other"},
		},
	}
	classifier := NewSourceClassifier(config)

	tests := []struct {
		url      string
		expected model.SourceTier
		desc     string
	}{
		{"https://www.mofa.go.kr/www/brd/m_4080/view.do", model.TierOfficial, "Government subdomain"},
		{"https://korea.kr/news/policyNewsView.do", model.TierOfficial, "Official domain exact match"},
		{"https://www.yna.co.kr/view/AKR2025", model.TierPress, "Wire service with www"},
		{"https://reuters.com/world/", model.TierPress, "Press domain exact match"},
		{"https://blog.reuters.com/post", model.TierOther, "Override wins over list"},
		{"https://WWW.YNA.CO.KR:443/view", model.TierPress, "Host case and port ignored"},
		{"https://example.com/article", model.TierOther, "Unlisted outlet"},
		{"https://notgo.kr/page", model.TierOther, "Suffix without dot boundary"},
		{"not a url", model.TierUnknown, "Missing host"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			result := classifier.Classify(tt.url)
			if result != tt.expected {
				t.Errorf("Expected %v for %s, got %v", tt.expected, tt.url, result)
			}
		})
	}
}

func TestSourceClassifier_DefaultConfig(t *testing.T) {
	classifier := NewSourceClassifier(nil)

	if got := classifier.Classify("https://www.whitehouse.gov/briefing-room/"); got != model.TierOfficial {
		t.Errorf("Expected official for .gov host, got %v", got)
	}
	if got := classifier.Classify("https://www.kbs.co.kr/news"); got != model.TierPress {
		t.Errorf("Expected press for kbs.co.kr, got %v", got)
	}
}

func TestSourceClassifier_Annotate(t *testing.T) {
	classifier := NewSourceClassifier(&model.SourcesConfig{PressDomains: []string{"reuters.com"}})
	refs := []model.ArticleRef{
		{Title: "a", URL: "https://www.reuters.com/a"},
		{Title: "b", URL: "https://example.org/b"},
	}

	classifier.Annotate(refs)

	if refs[0].Tier != model.TierPress {
		t.Errorf("Expected press tier for first ref, got %v", refs[0].Tier)
	}
	if refs[1].Tier != model.TierOther {
		t.Errorf("Expected other tier for second ref, got %v", refs[1].Tier)
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]model.SourceTier{
		"official":  model.TierOfficial,
		"PRIMARY":   model.TierOfficial,
		"press":     model.TierPress,
		"2":         model.TierPress,
		"other":     model.TierOther,
		"something": model.TierOther,
	}
	for in, expected := range tests {
		if got := parseTier(in); got != expected {
			t.Errorf("Expected %v for %q, got %v", expected, in, got)
		}
	}
}

func TestSourceTier_MarshalText(t *testing.T) {
	b, err := model.TierPress.MarshalText()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(b) != "press" {
		t.Errorf("Expected press, got %s", b)
	}
}
