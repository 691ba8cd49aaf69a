// Package devcontainer renders the generated artifact set: the image build
// recipe, the container descriptor, and the post-creation verification
// script. Every artifact is rendered fully in memory and written atomically,
// and an existing file is never overwritten unless forced.
package devcontainer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/rocmdev/rocmdev/pkg/probe"
	"github.com/rocmdev/rocmdev/pkg/rocmver"
	"github.com/rs/zerolog"
)

// Artifact file names.
const (
	ArtifactDockerfile = "Dockerfile"
	ArtifactDescriptor = "devcontainer.json"
	ArtifactVerifier   = "verify-gpu.py"
)

// fallbackTag is the image tag used when the resolved version cannot be
// parsed; a known-good reference beats a malformed one.
const fallbackTag = "6.4"

// WriteStatus is the per-artifact emit outcome.
type WriteStatus string

const (
	// StatusWritten means the artifact was rendered and written.
	StatusWritten WriteStatus = "written"

	// StatusSkipped means an existing file was left untouched.
	StatusSkipped WriteStatus = "skipped"
)

// WriteResult reports one artifact's emit outcome.
type WriteResult struct {
	// Artifact is the artifact file name.
	Artifact string `json:"artifact"`

	// Path is the full output path.
	Path string `json:"path"`

	// Status is written or skipped.
	Status WriteStatus `json:"status"`
}

// Inputs binds the templates to the resolved version and the detected host
// identity.
type Inputs struct {
	// Version is the resolved target version.
	Version rocmver.Version

	// BaseImage is the image repository (e.g. "rocm/pytorch").
	BaseImage string

	// Identity is the host identity embedded into the build arguments.
	Identity probe.HostIdentity

	// ExistingUser is the user the base image already defines at the host
	// UID, when detection succeeded. The recipe then reuses that identity
	// instead of creating a second one.
	ExistingUser *probe.ContainerUser

	// ShmSize is the container shared-memory size.
	ShmSize string

	// Extensions are the editor extension recommendations.
	Extensions []string
}

// templateData is the flattened view the templates render from.
type templateData struct {
	Tag            string
	Series         string
	BaseImage      string
	UserName       string
	UID            int
	GID            int
	ReuseUser      bool
	RenderGID      *int
	VideoGID       *int
	RenderGroupRef string
	VideoGroupRef  string
	ShmSize        string
	VerifierName   string
	Extensions     []string
}

var artifactTemplates = map[string]*template.Template{
	ArtifactDockerfile: template.Must(template.New(ArtifactDockerfile).Parse(dockerfileTemplate)),
	ArtifactDescriptor: template.Must(template.New(ArtifactDescriptor).Parse(descriptorTemplate)),
	ArtifactVerifier:   template.Must(template.New(ArtifactVerifier).Parse(verifierTemplate)),
}

// artifactOrder is the emit order.
var artifactOrder = []string{ArtifactDockerfile, ArtifactDescriptor, ArtifactVerifier}

// Emitter writes the artifact set into one output directory. Each artifact's
// overwrite policy is evaluated independently.
type Emitter struct {
	dir    string
	force  bool
	inputs Inputs
	log    zerolog.Logger
}

// NewEmitter creates an emitter for the given output directory.
func NewEmitter(dir string, force bool, inputs Inputs, logger zerolog.Logger) *Emitter {
	return &Emitter{
		dir:    dir,
		force:  force,
		inputs: inputs,
		log:    logger.With().Str("component", "devcontainer").Logger(),
	}
}

// Artifacts returns the artifact names in emit order.
func (e *Emitter) Artifacts() []string {
	return append([]string(nil), artifactOrder...)
}

// Exists reports whether the artifact file is already present.
func (e *Emitter) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(e.dir, name))
	return err == nil
}

// Write renders one artifact and writes it, honoring the overwrite policy.
// It implements the reconciler's ArtifactWriter contract: written=false
// means an existing file was left byte-for-byte untouched.
func (e *Emitter) Write(_ context.Context, name string) (bool, string, error) {
	path := filepath.Join(e.dir, name)

	if e.Exists(name) && !e.force {
		return false, path, nil
	}

	content, err := e.render(name)
	if err != nil {
		return false, path, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return false, path, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := atomicWriteFile(path, content, filePerm(name)); err != nil {
		return false, path, err
	}

	e.log.Info().Str("artifact", name).Str("path", path).Msg("Artifact written")
	return true, path, nil
}

// EmitAll writes every artifact in order and reports per-artifact results.
func (e *Emitter) EmitAll(ctx context.Context) ([]WriteResult, error) {
	results := make([]WriteResult, 0, len(artifactOrder))
	for _, name := range artifactOrder {
		written, path, err := e.Write(ctx, name)
		if err != nil {
			return results, fmt.Errorf("failed to emit %s: %w", name, err)
		}

		status := StatusSkipped
		if written {
			status = StatusWritten
		}
		results = append(results, WriteResult{Artifact: name, Path: path, Status: status})
	}
	return results, nil
}

// render produces the artifact's full content in memory.
func (e *Emitter) render(name string) ([]byte, error) {
	tmpl, ok := artifactTemplates[name]
	if !ok {
		return nil, fmt.Errorf("unknown artifact %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, e.templateData()); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// templateData flattens the inputs for rendering.
func (e *Emitter) templateData() templateData {
	in := e.inputs

	data := templateData{
		Tag:            DeriveTag(in.Version),
		Series:         in.Version.Series(),
		BaseImage:      in.BaseImage,
		UserName:       in.Identity.Username,
		UID:            in.Identity.UID,
		GID:            in.Identity.GID,
		RenderGID:      in.Identity.RenderGID,
		VideoGID:       in.Identity.VideoGID,
		RenderGroupRef: groupRef(in.Identity.RenderGID, "render"),
		VideoGroupRef:  groupRef(in.Identity.VideoGID, "video"),
		ShmSize:        in.ShmSize,
		VerifierName:   ArtifactVerifier,
		Extensions:     in.Extensions,
	}

	if in.ExistingUser != nil {
		data.ReuseUser = true
		data.UserName = in.ExistingUser.Name
	}

	return data
}

// DeriveTag derives the major.minor image tag from the resolved version. A
// zero version (parsing failed upstream) yields the fixed safe default
// instead of a malformed reference.
func DeriveTag(v rocmver.Version) string {
	if v == (rocmver.Version{}) {
		return fallbackTag
	}
	return v.Series()
}

// groupRef returns the numeric GID reference when detection succeeded, or
// the well-known group name otherwise.
func groupRef(gid *int, name string) string {
	if gid != nil {
		return fmt.Sprintf("%d", *gid)
	}
	return name
}

// filePerm returns the output mode; the verifier is executable.
func filePerm(name string) os.FileMode {
	if name == ArtifactVerifier {
		return 0o755
	}
	return 0o644
}

// atomicWriteFile writes via a temp file and rename so an interrupted run
// never leaves a truncated artifact.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			return fmt.Errorf("failed to rename file (temp cleanup also failed: %v): %w", removeErr, err)
		}
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
