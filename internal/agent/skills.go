package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// skillFile is the document name inside each skill directory.
const skillFile = "SKILL.md"

// skillMeta is the optional YAML frontmatter of a SKILL.md file.
type skillMeta struct {
	Description string `yaml:"description"`
	Enabled     *bool  `yaml:"enabled"`
}

type cachedSkill struct {
	modTime   time.Time
	formatted string // "" when the skill is disabled
}

// SkillCache renders workspace/skills/*/SKILL.md for the system prompt.
// A skill is only re-read and re-formatted when its modification time
// changes; vanished skills drop out on the next scan.
type SkillCache struct {
	dir string
	log zerolog.Logger

	mu    sync.Mutex
	cache map[string]cachedSkill
}

func NewSkillCache(dir string, log zerolog.Logger) *SkillCache {
	return &SkillCache{dir: dir, log: log, cache: map[string]cachedSkill{}}
}

// Dir returns the skills root.
func (c *SkillCache) Dir() string { return c.dir }

// Render returns every enabled skill, sorted by name and joined with blank
// lines. Output is stable for unchanged files.
func (c *SkillCache) Render() string {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Err(err).Str("dir", c.dir).Msg("cannot read skills dir")
		}
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		path := filepath.Join(c.dir, name, skillFile)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		seen[name] = true
		names = append(names, name)

		if cached, ok := c.cache[name]; ok && cached.modTime.Equal(info.ModTime()) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			c.log.Warn().Err(err).Str("skill", name).Msg("cannot read skill")
			delete(c.cache, name)
			continue
		}
		c.cache[name] = cachedSkill{modTime: info.ModTime(), formatted: formatSkill(name, string(data))}
		c.log.Debug().Str("skill", name).Msg("skill loaded")
	}
	for name := range c.cache {
		if !seen[name] {
			delete(c.cache, name)
		}
	}

	sort.Strings(names)
	var parts []string
	for _, name := range names {
		if s := c.cache[name].formatted; s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

// formatSkill keeps the document text verbatim under a heading. A
// frontmatter block with `enabled: false` hides the skill.
func formatSkill(name, content string) string {
	meta, ok := parseFrontmatter(content)
	if ok && meta.Enabled != nil && !*meta.Enabled {
		return ""
	}
	heading := "## Skill: " + name
	if meta.Description != "" {
		heading = fmt.Sprintf("## Skill: %s (%s)", name, meta.Description)
	}
	return heading + "\n" + strings.TrimSpace(content)
}

func parseFrontmatter(content string) (skillMeta, bool) {
	if !strings.HasPrefix(content, "---") {
		return skillMeta{}, false
	}
	rest := content[3:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return skillMeta{}, false
	}
	var m skillMeta
	if err := yaml.Unmarshal([]byte(rest[:end]), &m); err != nil {
		return skillMeta{}, false
	}
	return m, true
}
