package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones a git repository if it doesn't exist at localPath, or pulls
// the latest changes if it does. progress may be nil.
func Sync(ctx context.Context, repoURL, localPath string, progress io.Writer) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Info("Cloning deck repository", "url", repoURL, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Depth:    1,
			Progress: progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", repoURL, err)
		}
	case err == nil:
		slog.Info("Pulling deck repository", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// LocalPath maps a git URL (https or scp-like ssh) to a checkout directory
// under baseDir, e.g. git@github.com:me/decks.git -> baseDir/github.com/me/decks.
func LocalPath(baseDir, repoURL string) (string, error) {
	if u, err := url.Parse(repoURL); err == nil && (u.Scheme == "https" || u.Scheme == "http" || u.Scheme == "ssh") {
		if u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return "", fmt.Errorf("could not parse git URL: %s", repoURL)
		}
		return checkoutPath(baseDir, u.Hostname(), u.Path)
	}

	// scp-like syntax: [user@]host:path
	host, path, ok := strings.Cut(repoURL, ":")
	if !ok || path == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	if _, h, found := strings.Cut(host, "@"); found {
		host = h
	}
	if host == "" || strings.ContainsAny(host, "/\\") {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return checkoutPath(baseDir, host, path)
}

func checkoutPath(baseDir, host, repoPath string) (string, error) {
	repoPath = strings.TrimSuffix(strings.Trim(repoPath, "/"), ".git")
	p := filepath.Join(baseDir, host, filepath.FromSlash(repoPath))
	// Keep checkouts inside baseDir even for paths containing "..".
	rel, err := filepath.Rel(baseDir, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("git URL %s escapes the repository directory", host+":"+repoPath)
	}
	return p, nil
}
