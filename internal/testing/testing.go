// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/desertthunder/likeshift/internal/models"
	"github.com/desertthunder/likeshift/internal/services"
	"golang.org/x/oauth2"
)

// MockService is a configurable test double for [services.OAuthService].
type MockService struct {
	Profile  *models.UserProfile
	Pages    []*services.SavedTrackPage
	PageErrs []error
	pageIdx  int

	SavedIDs     []string
	SavedBatches [][]string
	SaveErr      error

	AuthURL     string
	OAuthConfig *oauth2.Config
	AuthErr     error
}

func (m *MockService) Authenticate(ctx context.Context, credentials map[string]string) error {
	return m.AuthErr
}

func (m *MockService) UserProfile(ctx context.Context) (*models.UserProfile, error) {
	if m.Profile == nil {
		return &models.UserProfile{ID: "mock-user", DisplayName: "Mock User"}, nil
	}
	return m.Profile, nil
}

func (m *MockService) SavedTracks(ctx context.Context, limit, offset int) (*services.SavedTrackPage, error) {
	idx := m.pageIdx
	m.pageIdx++
	if idx < len(m.PageErrs) && m.PageErrs[idx] != nil {
		return nil, m.PageErrs[idx]
	}
	if idx < len(m.Pages) {
		return m.Pages[idx], nil
	}
	return &services.SavedTrackPage{Limit: limit, Offset: offset}, nil
}

func (m *MockService) SaveTrack(ctx context.Context, trackID string) error {
	m.SavedIDs = append(m.SavedIDs, trackID)
	return m.SaveErr
}

func (m *MockService) SaveTracks(ctx context.Context, trackIDs []string) error {
	m.SavedBatches = append(m.SavedBatches, trackIDs)
	return m.SaveErr
}

func (m *MockService) Name() string { return "mock" }

func (m *MockService) GetAuthURL(state string) string {
	if m.AuthURL != "" {
		return m.AuthURL + "?state=" + state
	}
	return "https://auth.example/authorize?state=" + state
}

func (m *MockService) GetOAuthConfig() *oauth2.Config {
	if m.OAuthConfig == nil {
		return &oauth2.Config{}
	}
	return m.OAuthConfig
}

func (m *MockService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	return m.AuthErr
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
