package rules

import (
	"path"
	"strings"
	"sync"

	"github.com/1broseidon/tessel/internal/config"
)

// appRule floats windows of one class, optionally only for some titles.
type appRule struct {
	pattern string
	titles  []string
}

// Classifier decides which windows start out floating. Class patterns
// match case-insensitively and may use shell globs; title patterns match
// as case-insensitive substrings.
type Classifier struct {
	mu     sync.RWMutex
	apps   []appRule
	titles []string
}

// NewClassifier builds a classifier from the float_apps and float_titles
// settings.
func NewClassifier(apps config.FloatAppList, titles []string) *Classifier {
	c := &Classifier{}
	c.Update(apps, titles)
	return c
}

// Update replaces the rules after a configuration reload.
func (c *Classifier) Update(apps config.FloatAppList, titles []string) {
	rules := make([]appRule, 0, len(apps))
	for _, app := range apps {
		rules = append(rules, appRule{
			pattern: strings.ToLower(app.Class),
			titles:  lowerAll(app.Titles),
		})
	}
	lowered := lowerAll(titles)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps = rules
	c.titles = lowered
}

// Floats reports whether a window of appID titled title should float.
func (c *Classifier) Floats(appID, title string) bool {
	appID = strings.ToLower(appID)
	title = strings.ToLower(title)

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.titles {
		if strings.Contains(title, t) {
			return true
		}
	}
	for _, rule := range c.apps {
		if !matchClass(rule.pattern, appID) {
			continue
		}
		if len(rule.titles) == 0 {
			return true
		}
		for _, t := range rule.titles {
			if strings.Contains(title, t) {
				return true
			}
		}
	}
	return false
}

func matchClass(pattern, class string) bool {
	if pattern == class {
		return true
	}
	ok, err := path.Match(pattern, class)
	return err == nil && ok
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
