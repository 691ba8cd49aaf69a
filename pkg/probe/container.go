package probe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ContainerUserAt queries a container base image for a user already defined
// at the given UID. When one exists, the reconciler reuses that identity and
// grafts host group GIDs onto it instead of creating a second conflicting
// user.
//
// The query is best-effort: it needs a working container runtime and may pull
// the image. Callers must treat any error as "no existing user" and degrade
// to creating a new identity.
func (p *Prober) ContainerUserAt(ctx context.Context, image string, uid int) (*ContainerUser, error) {
	if _, err := p.runner.LookPath("docker"); err != nil {
		return nil, fmt.Errorf("container runtime unavailable: %w", err)
	}

	out, err := p.runner.Run(ctx, "docker", "run", "--rm", "--entrypoint", "getent",
		image, "passwd", strconv.Itoa(uid))
	if err != nil {
		return nil, fmt.Errorf("image user query failed: %w", err)
	}

	u, err := parsePasswdEntry(out)
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Str("image", image).
		Str("user", u.Name).
		Int("uid", u.UID).
		Msg("Base image already defines a user at the host UID; reusing it")

	return u, nil
}

// parsePasswdEntry parses one getent passwd line (name:x:uid:gid:...).
func parsePasswdEntry(line string) (*ContainerUser, error) {
	fields := strings.Split(strings.TrimSpace(line), ":")
	if len(fields) < 4 {
		return nil, fmt.Errorf("malformed passwd entry %q", line)
	}

	uid, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, fmt.Errorf("malformed uid in passwd entry %q", line)
	}
	gid, err := strconv.Atoi(fields[3])
	if err != nil {
		return nil, fmt.Errorf("malformed gid in passwd entry %q", line)
	}

	return &ContainerUser{Name: fields[0], UID: uid, GID: gid}, nil
}
