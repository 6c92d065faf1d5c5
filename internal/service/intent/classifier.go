package intent

import "math"

// Classifier is a multinomial naive Bayes text classifier with add-one
// smoothing. Tokens never seen during training are ignored.
type Classifier struct {
	labels      []string
	docCount    map[string]int
	tokenCount  map[string]map[string]int
	totalTokens map[string]int
	vocabulary  map[string]struct{}
	totalDocs   int
}

func NewClassifier() *Classifier {
	return &Classifier{
		docCount:    make(map[string]int),
		tokenCount:  make(map[string]map[string]int),
		totalTokens: make(map[string]int),
		vocabulary:  make(map[string]struct{}),
	}
}

// AddDocument trains the classifier with one example utterance.
func (c *Classifier) AddDocument(text, label string) {
	if _, seen := c.docCount[label]; !seen {
		c.labels = append(c.labels, label)
		c.tokenCount[label] = make(map[string]int)
	}
	c.docCount[label]++
	c.totalDocs++

	for _, tok := range Tokenize(text) {
		c.tokenCount[label][tok]++
		c.totalTokens[label]++
		c.vocabulary[tok] = struct{}{}
	}
}

// Labels returns the labels in training order.
func (c *Classifier) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Classify returns the most probable label for the tokens. The boolean is
// false when the classifier is untrained or none of the tokens is known.
// Equal scores keep the label that was trained first.
func (c *Classifier) Classify(tokens []string) (string, bool) {
	known := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := c.vocabulary[tok]; ok {
			known = append(known, tok)
		}
	}
	if len(known) == 0 || c.totalDocs == 0 {
		return "", false
	}

	vocab := float64(len(c.vocabulary))
	best := ""
	bestScore := math.Inf(-1)
	for _, label := range c.labels {
		score := math.Log(float64(c.docCount[label]) / float64(c.totalDocs))
		denom := float64(c.totalTokens[label]) + vocab
		for _, tok := range known {
			score += math.Log((float64(c.tokenCount[label][tok]) + 1) / denom)
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, true
}
