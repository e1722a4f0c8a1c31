// Package targets reads the list of detail-page addresses to scrape.
package targets

import (
	"bufio"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/PentesterFlow/storescrape/internal/errors"
)

// DefaultInputFile is read when no input path is given.
const DefaultInputFile = "games.txt"

// Rules narrows which addresses are accepted.
type Rules struct {
	AllowedDomains  []string `yaml:"allowed_domains" json:"allowed_domains"`
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns"`
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns"`
}

// Checker validates addresses against Rules.
type Checker struct {
	allowedDomains map[string]struct{}
	includeRegexps []*regexp.Regexp
	excludeRegexps []*regexp.Regexp
}

// NewChecker compiles rules.
func NewChecker(rules Rules) (*Checker, error) {
	c := &Checker{allowedDomains: make(map[string]struct{})}

	for _, pattern := range rules.IncludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.includeRegexps = append(c.includeRegexps, re)
	}
	for _, pattern := range rules.ExcludePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		c.excludeRegexps = append(c.excludeRegexps, re)
	}
	for _, domain := range rules.AllowedDomains {
		c.allowedDomains[strings.ToLower(domain)] = struct{}{}
	}

	return c, nil
}

// Allows reports whether raw is an absolute http(s) address within scope.
func (c *Checker) Allows(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}
	if len(c.allowedDomains) > 0 && !c.isDomainAllowed(parsed.Hostname()) {
		return false
	}

	// Exclude patterns win over include patterns.
	for _, re := range c.excludeRegexps {
		if re.MatchString(raw) {
			return false
		}
	}
	if len(c.includeRegexps) == 0 {
		return true
	}
	for _, re := range c.includeRegexps {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

func (c *Checker) isDomainAllowed(host string) bool {
	host = strings.ToLower(host)
	if _, ok := c.allowedDomains[host]; ok {
		return true
	}
	for domain := range c.allowedDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Parse reads one address per line. Blank lines, lines starting with '#'
// and lines outside the rules are skipped; order and repeats are kept.
func Parse(r io.Reader, rules Rules) ([]string, error) {
	checker, err := NewChecker(rules)
	if err != nil {
		return nil, err
	}

	var out []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !checker.Allows(line) {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFile reads the target list at path.
func ReadFile(path string, rules Rules) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOFailure(path, "read", err)
	}
	defer f.Close()

	list, err := Parse(f, rules)
	if err != nil {
		return nil, errors.NewIOFailure(path, "parse", err)
	}
	return list, nil
}
