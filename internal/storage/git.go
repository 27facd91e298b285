// SPDX-FileCopyrightText: 2020 Pier Luigi Fiorini <pierluigi.fiorini@gmail.com>
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// git runs git commands against a repository directory
type git struct {
	dir string
}

// run executes a git command and returns stdout; stderr is included in
// the error on failure
func (g git) run(ctx context.Context, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer

	command := exec.CommandContext(ctx, "git", append([]string{"-C", g.dir}, args...)...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), g.dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// exists returns whether the object named by rev exists
func (g git) exists(ctx context.Context, rev string) (bool, error) {
	command := exec.CommandContext(ctx, "git", "-C", g.dir, "cat-file", "-e", rev)
	err := command.Run()
	if err == nil {
		return true, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("git cat-file -e %s in %s: %w", rev, g.dir, err)
}

// Version returns the output of git version, failing when git isn't available
func Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "version").Output()
	if err != nil {
		return "", fmt.Errorf("'git' command must be available: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
