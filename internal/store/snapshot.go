package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"promohub/internal/models"
)

type snapshotFile struct {
	Users         []models.User                     `json:"users"`
	Projects      []models.Project                  `json:"projects"`
	Posts         []models.Post                     `json:"posts"`
	Groups        []models.Group                    `json:"groups"`
	Reports       []models.Report                   `json:"reports"`
	AdminDMs      []models.AdminDM                  `json:"adminDms"`
	GroupMessages map[string][]models.GroupMessage  `json:"groupMessages"`
	PublicChat    map[string][]models.PublicMessage `json:"publicChat"`
	DMs           map[string][]models.DirectMessage `json:"dms"`
	Votes         map[string][]string               `json:"votes"`
}

// Snapshot writes the whole store to the snapshot path. The file is written
// to a temporary sibling first and renamed, so a crash never leaves a
// half-written snapshot behind.
func (m *Memory) Snapshot() error {
	if m.path == "" {
		return nil
	}
	m.snapMu.Lock()
	defer m.snapMu.Unlock()

	snap := snapshotFile{
		Users:         m.users.all(),
		Projects:      m.projects.all(),
		Posts:         m.posts.all(),
		Groups:        m.groups.all(),
		Reports:       m.reports.all(),
		AdminDMs:      m.adminDMs.all(),
		GroupMessages: m.groupMessages.export(),
		PublicChat:    m.publicChat.export(),
		DMs:           m.dms.export(),
		Votes:         m.votes.export(),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encoding snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("store: creating snapshot dir: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("store: replacing snapshot: %w", err)
	}

	m.logger.Debug("[STORE] Snapshot written", "path", m.path, "bytes", len(data))
	return nil
}

func (m *Memory) load() error {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.logger.Info("[STORE] No snapshot found, starting empty", "path", m.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: reading snapshot: %w", err)
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("store: decoding snapshot %s: %w", m.path, err)
	}

	m.users.replace(snap.Users)
	m.projects.replace(snap.Projects)
	m.posts.replace(snap.Posts)
	m.groups.replace(snap.Groups)
	m.reports.replace(snap.Reports)
	m.adminDMs.replace(snap.AdminDMs)
	m.groupMessages.replace(snap.GroupMessages)
	m.publicChat.replace(snap.PublicChat)
	m.dms.replace(snap.DMs)
	m.votes.replace(snap.Votes)

	m.logger.Info("[STORE] Snapshot loaded",
		"path", m.path,
		"users", len(snap.Users),
		"projects", len(snap.Projects),
		"posts", len(snap.Posts),
	)
	return nil
}
