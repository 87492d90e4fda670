package sources

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bundle is the caller-side context file consumed by the CLI: the
// characters, scenario and lorebook a template's data references draw
// from, plus the free-form globals exposed to {{$globals...}} paths.
type Bundle struct {
	Characters []Character    `yaml:"characters,omitempty"`
	Scenario   map[string]any `yaml:"scenario,omitempty"`
	Lorebook   []LoreEntry    `yaml:"lorebook,omitempty"`
	Intent     string         `yaml:"intent,omitempty"`
	Globals    map[string]any `yaml:"globals,omitempty"`
	Context    map[string]any `yaml:"context,omitempty"`

	Conversation ConversationRef `yaml:"conversation,omitempty"`
}

type Character struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Persona     string         `yaml:"persona,omitempty"`
	Traits      []string       `yaml:"traits,omitempty"`
	Extra       map[string]any `yaml:"extra,omitempty"`
}

// LoreEntry is one lorebook record; Keys gate when it applies.
type LoreEntry struct {
	Keys     []string `yaml:"keys,omitempty"`
	Text     string   `yaml:"text"`
	Priority int      `yaml:"priority,omitempty"`
}

// ConversationRef points the turns source at a stored conversation.
type ConversationRef struct {
	ID    string `yaml:"id,omitempty"`
	Limit int    `yaml:"limit,omitempty"`
}

// LoadBundle reads and parses a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", path, err)
	}
	var b Bundle
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse bundle %s: %w", path, err)
	}
	return &b, nil
}

// RenderContext builds the value rendered templates see as their
// context root. Plain {{paths}} resolve against this.
func (b *Bundle) RenderContext() map[string]any {
	ctx := make(map[string]any, len(b.Context)+2)
	for k, v := range b.Context {
		ctx[k] = v
	}
	if b.Intent != "" {
		ctx["intent"] = b.Intent
	}
	if len(b.Scenario) > 0 {
		ctx["scenario"] = b.Scenario
	}
	return ctx
}

// WireInto registers the bundle's sources on a registry.
func (b *Bundle) WireInto(r *Registry) {
	r.Register("characters", b.resolveCharacters)
	r.Register("scenario", b.resolveScenario)
	r.RegisterOrdered("lorebook", b.resolveLorebook)
	r.Register("intent", func(args, ctx any) (any, error) {
		return b.Intent, nil
	})
}

// resolveCharacters returns all characters as generic values, or a
// single character when args names one.
func (b *Bundle) resolveCharacters(args, ctx any) (any, error) {
	name, _ := args.(string)
	if name != "" {
		for _, c := range b.Characters {
			if strings.EqualFold(c.Name, name) {
				return characterValue(c), nil
			}
		}
		return nil, fmt.Errorf("unknown character: %s", name)
	}
	out := make([]any, 0, len(b.Characters))
	for _, c := range b.Characters {
		out = append(out, characterValue(c))
	}
	return out, nil
}

func (b *Bundle) resolveScenario(args, ctx any) (any, error) {
	if key, ok := args.(string); ok && key != "" {
		v, present := b.Scenario[key]
		if !present {
			return nil, fmt.Errorf("scenario has no field %q", key)
		}
		return v, nil
	}
	return b.Scenario, nil
}

// resolveLorebook filters entries by key match against a probe string
// (args as string, or args["match"]) and orders by priority. Entries
// without keys always apply.
func (b *Bundle) resolveLorebook(args, ctx any, order string) (any, error) {
	probe := ""
	switch a := args.(type) {
	case string:
		probe = a
	case map[string]any:
		probe, _ = a["match"].(string)
	}
	probe = strings.ToLower(probe)

	matched := make([]LoreEntry, 0, len(b.Lorebook))
	for _, e := range b.Lorebook {
		if entryApplies(e, probe) {
			matched = append(matched, e)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if order == "desc" {
			return matched[i].Priority > matched[j].Priority
		}
		return matched[i].Priority < matched[j].Priority
	})
	out := make([]any, 0, len(matched))
	for _, e := range matched {
		out = append(out, map[string]any{
			"text":     e.Text,
			"priority": e.Priority,
		})
	}
	return out, nil
}

func entryApplies(e LoreEntry, probe string) bool {
	if len(e.Keys) == 0 {
		return true
	}
	if probe == "" {
		return false
	}
	for _, k := range e.Keys {
		if strings.Contains(probe, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func characterValue(c Character) map[string]any {
	v := map[string]any{"name": c.Name}
	if c.Description != "" {
		v["description"] = c.Description
	}
	if c.Persona != "" {
		v["persona"] = c.Persona
	}
	if len(c.Traits) > 0 {
		traits := make([]any, len(c.Traits))
		for i, t := range c.Traits {
			traits[i] = t
		}
		v["traits"] = traits
	}
	for k, ev := range c.Extra {
		v[k] = ev
	}
	return v
}
