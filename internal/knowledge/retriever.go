package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/yungbote/helpdesk-backend/internal/logger"
	"github.com/yungbote/helpdesk-backend/internal/types"
)

const (
	categoryKeywordWeight    = 2
	subcategoryKeywordWeight = 3
	questionWordWeight       = 5
	answerWordWeight         = 1
	minQueryWordRunes        = 3
)

// Match is a scored article with the path that led to it.
type Match struct {
	Category       string               `json:"category"`
	CategoryKey    string               `json:"category_key"`
	Subcategory    string               `json:"subcategory"`
	SubcategoryKey string               `json:"subcategory_key"`
	Question       string               `json:"question"`
	Answer         string               `json:"answer"`
	CanAutoResolve bool                 `json:"can_auto_resolve"`
	Priority       types.TicketPriority `json:"priority"`
	Score          int                  `json:"score"`
}

type CategorySummary struct {
	Key           string   `json:"key"`
	Name          string   `json:"name"`
	NameKZ        string   `json:"name_kz,omitempty"`
	Subcategories []string `json:"subcategories"`
	ArticleCount  int      `json:"article_count"`
}

type Retriever interface {
	Search(query string, topK int) []Match
	BuildContext(matches []Match) string
	AddArticle(categoryKey, subcategoryKey string, article Article) bool
	Categories() []CategorySummary
}

type retriever struct {
	log  *logger.Logger
	mu   sync.RWMutex
	base []Category
}

func NewRetriever(log *logger.Logger, base []Category) Retriever {
	return &retriever{
		log:  log.With("service", "KnowledgeRetriever"),
		base: base,
	}
}

// Search scores every article against the query and returns the topK best.
// Scoring is additive down the hierarchy: category keyword hits are worth 2
// each, subcategory keyword hits 3, then each query word of more than 3
// characters adds 5 if it appears in the article question and 1 if it appears
// in the answer. A category with no keyword hits is skipped entirely unless a
// word of its display name appears in the query. Ties keep definition order.
func (r *retriever) Search(query string, topK int) []Match {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return []Match{}
	}
	if topK < 0 {
		topK = 0
	}
	words := queryWords(normalized)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []Match
	for _, cat := range r.base {
		catScore := categoryKeywordWeight * keywordHits(cat.Keywords, normalized)
		if catScore == 0 && !nameMentioned(cat.Name, normalized) {
			continue
		}
		for _, sub := range cat.Subcategories {
			subScore := catScore + subcategoryKeywordWeight*keywordHits(sub.Keywords, normalized)
			for _, art := range sub.Articles {
				score := subScore
				questionLower := strings.ToLower(art.Question)
				answerLower := strings.ToLower(art.Answer)
				for _, w := range words {
					if strings.Contains(questionLower, w) {
						score += questionWordWeight
					}
					if strings.Contains(answerLower, w) {
						score += answerWordWeight
					}
				}
				if score > 0 {
					results = append(results, Match{
						Category:       cat.Name,
						CategoryKey:    cat.Key,
						Subcategory:    sub.Name,
						SubcategoryKey: sub.Key,
						Question:       art.Question,
						Answer:         art.Answer,
						CanAutoResolve: art.CanAutoResolve,
						Priority:       art.Priority,
						Score:          score,
					})
				}
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	if results == nil {
		results = []Match{}
	}
	r.log.Debug("knowledge search", "query", query, "matches", len(results))
	return results
}

// BuildContext formats matches into the text block handed to the model.
func (r *retriever) BuildContext(matches []Match) string {
	if len(matches) == 0 {
		return "Релевантная информация не найдена в базе знаний."
	}
	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "--- Статья %d ---\n", i+1)
		fmt.Fprintf(&b, "Категория: %s > %s\n", m.Category, m.Subcategory)
		fmt.Fprintf(&b, "Вопрос: %s\n", m.Question)
		fmt.Fprintf(&b, "Ответ: %s\n\n", m.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// AddArticle appends an article to an existing subcategory. New articles sort
// after existing ones with equal scores because search order is stable.
func (r *retriever) AddArticle(categoryKey, subcategoryKey string, article Article) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ci := range r.base {
		if r.base[ci].Key != categoryKey {
			continue
		}
		for si := range r.base[ci].Subcategories {
			if r.base[ci].Subcategories[si].Key != subcategoryKey {
				continue
			}
			r.base[ci].Subcategories[si].Articles = append(r.base[ci].Subcategories[si].Articles, article)
			r.log.Info("knowledge article added", "category", categoryKey, "subcategory", subcategoryKey, "question", article.Question)
			return true
		}
	}
	r.log.Warn("knowledge article target missing", "category", categoryKey, "subcategory", subcategoryKey)
	return false
}

func (r *retriever) Categories() []CategorySummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CategorySummary, 0, len(r.base))
	for _, cat := range r.base {
		s := CategorySummary{Key: cat.Key, Name: cat.Name, NameKZ: cat.NameKZ}
		for _, sub := range cat.Subcategories {
			s.Subcategories = append(s.Subcategories, sub.Name)
			s.ArticleCount += len(sub.Articles)
		}
		out = append(out, s)
	}
	return out
}

func keywordHits(keywords []string, query string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(query, strings.ToLower(kw)) {
			n++
		}
	}
	return n
}

func nameMentioned(name, query string) bool {
	for _, w := range strings.Fields(strings.ToLower(name)) {
		if strings.Contains(query, w) {
			return true
		}
	}
	return false
}

func queryWords(normalized string) []string {
	var words []string
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) > minQueryWordRunes {
			words = append(words, w)
		}
	}
	return words
}

// CanAutoResolve reports whether any match can be answered without an
// operator.
func CanAutoResolve(matches []Match) bool {
	for _, m := range matches {
		if m.CanAutoResolve {
			return true
		}
	}
	return false
}

// SuggestedPriority is the best match's priority, medium when nothing
// matched.
func SuggestedPriority(matches []Match) types.TicketPriority {
	if len(matches) == 0 || matches[0].Priority == "" {
		return types.TicketPriorityMedium
	}
	return matches[0].Priority
}
