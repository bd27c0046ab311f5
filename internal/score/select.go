package score

import "github.com/ppiankov/claimtrust/internal/model"

// Selection is the representative article and excerpt for a verdict
type Selection struct {
	Article  *model.ArticleRef
	Excerpt  string // Original-language sentence; empty on fallback
	Fallback bool   // No decisive evidence; first article chosen
	Found    bool   // False only when there are no articles
}

// SelectBest picks the non-neutral judged sentence with the highest NLI
// confidence. Ties keep the earliest sentence. Without decisive evidence the
// first article is returned with an empty excerpt.
func SelectBest(sentences []model.CoreSentence, articles []model.Article) Selection {
	if len(articles) == 0 {
		return Selection{}
	}

	best := -1
	maxConf := -1.0
	for i, s := range sentences {
		if !s.Judged() || s.NLI.Sign() == 0 {
			continue
		}
		if s.ArticleIndex < 0 || s.ArticleIndex >= len(articles) {
			continue
		}
		if s.NLI.Confidence > maxConf {
			maxConf = s.NLI.Confidence
			best = i
		}
	}

	if best < 0 {
		ref := articles[0].Ref()
		return Selection{Article: &ref, Fallback: true, Found: true}
	}

	ref := articles[sentences[best].ArticleIndex].Ref()
	return Selection{Article: &ref, Excerpt: sentences[best].Sentence, Found: true}
}
