package main

import (
	"errors"
	"slices"
	"sync"
)

type Team struct {
	ID     int    `json:"id"`
	League string `json:"league"`
	Name   string `json:"name"`
}

func (t Team) validate() error {
	if t.Name == "" || t.League == "" {
		return errors.New("name and league are required")
	}
	return nil
}

var errTeamNotFound = errors.New("team not found")

// teamStore is the in-memory repository behind the demo API.
type teamStore struct {
	mu     sync.RWMutex
	teams  []Team
	nextID int
}

func newTeamStore() *teamStore {
	return &teamStore{
		teams: []Team{
			{ID: 1, League: "NHL", Name: "Leafs"},
			{ID: 2, League: "NHL", Name: "Habs"},
		},
		nextID: 3,
	}
}

func (s *teamStore) List() []Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.teams)
}

func (s *teamStore) Get(id int) (Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.teams[i], nil
	}
	return Team{}, errTeamNotFound
}

func (s *teamStore) Add(t Team) Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID
	s.nextID++
	s.teams = append(s.teams, t)
	return t
}

func (s *teamStore) Update(id int, t Team) (Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return Team{}, errTeamNotFound
	}
	s.teams[i].League = t.League
	s.teams[i].Name = t.Name
	return s.teams[i], nil
}

func (s *teamStore) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return errTeamNotFound
	}
	s.teams = slices.Delete(s.teams, i, i+1)
	return nil
}

func (s *teamStore) index(id int) int {
	return slices.IndexFunc(s.teams, func(t Team) bool { return t.ID == id })
}
