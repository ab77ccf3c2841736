package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ActorSpec declares one actor of the roster.
type ActorSpec struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name"`
	Role      string   `yaml:"role"`
	Scope     string   `yaml:"scope,omitempty"`
	Expertise []string `yaml:"expertise,omitempty"`
	// Kinds restricts the act kinds the actor can produce; empty means all.
	Kinds []string `yaml:"kinds,omitempty"`
}

// Roster is the parsed actor configuration for a session.
type Roster struct {
	Actors []ActorSpec `yaml:"actors"`

	// SeedSpeakers act first: their opening statements are injected at
	// bootstrap before the scheduler takes over.
	SeedSpeakers []string `yaml:"seed_speakers,omitempty"`
	// SeedTags seed the shared tag pool.
	SeedTags []string `yaml:"seed_tags,omitempty"`
	// PrivilegedRoles are quoted verbatim on the team board.
	PrivilegedRoles []string `yaml:"privileged_roles,omitempty"`
	// TurnOrder, when set, drives the template-order scheduling strategy.
	TurnOrder []string `yaml:"turn_order,omitempty"`
}

// LoadRoster reads and validates a roster file.
func LoadRoster(path string) (*Roster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster %s: %w", path, err)
	}
	var roster Roster
	if err := yaml.Unmarshal(raw, &roster); err != nil {
		return nil, fmt.Errorf("parse roster %s: %w", path, err)
	}
	if err := roster.validate(); err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return &roster, nil
}

func (r *Roster) validate() error {
	if len(r.Actors) == 0 {
		return fmt.Errorf("no actors defined")
	}
	ids := make(map[string]bool, len(r.Actors))
	for i, a := range r.Actors {
		if a.ID == "" {
			return fmt.Errorf("actor %d has no id", i)
		}
		if a.Name == "" {
			return fmt.Errorf("actor %s has no name", a.ID)
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate actor id %s", a.ID)
		}
		ids[a.ID] = true
	}
	for _, id := range r.SeedSpeakers {
		if !ids[id] {
			return fmt.Errorf("seed speaker %s is not in the roster", id)
		}
	}
	for _, id := range r.TurnOrder {
		if !ids[id] {
			return fmt.Errorf("turn order names unknown actor %s", id)
		}
	}
	return nil
}
