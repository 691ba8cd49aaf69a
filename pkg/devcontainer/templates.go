package devcontainer

// The three artifact templates. Group access is bound by numeric GID when
// host detection succeeded, because group names are not guaranteed to match
// between host and container; name-based access is the fallback.

const dockerfileTemplate = `# Generated by rocmdev. Re-run "rocmdev generate --force" to regenerate.
ARG ROCM_TAG={{.Tag}}
FROM {{.BaseImage}}:{{.Tag}}

ARG USERNAME={{.UserName}}
ARG USER_UID={{.UID}}
ARG USER_GID={{.GID}}

{{- if .ReuseUser}}

# The base image already defines {{.UserName}} at the host UID; align its
# primary group instead of creating a conflicting second identity.
RUN groupmod -o -g ${USER_GID} "$(id -gn ${USERNAME})" \
    && usermod -g ${USER_GID} ${USERNAME}
{{- else}}

RUN groupadd --gid ${USER_GID} ${USERNAME} \
    && useradd --uid ${USER_UID} --gid ${USER_GID} --create-home --shell /bin/bash ${USERNAME}
{{- end}}
{{- if .RenderGID}}

# Bind device-file group access to the host's numeric GIDs so bind-mounted
# files and /dev/dri nodes stay accessible.
RUN getent group render >/dev/null || groupadd render; groupmod -o -g {{.RenderGID}} render
{{- end}}
{{- if .VideoGID}}
RUN getent group video >/dev/null || groupadd video; groupmod -o -g {{.VideoGID}} video
{{- end}}

RUN usermod -aG render,video ${USERNAME}

USER ${USERNAME}
WORKDIR /workspaces
`

const descriptorTemplate = `{
  "name": "ROCm ML ({{.Series}})",
  "build": {
    "dockerfile": "Dockerfile",
    "args": {
      "ROCM_TAG": "{{.Tag}}",
      "USERNAME": "{{.UserName}}",
      "USER_UID": "{{.UID}}",
      "USER_GID": "{{.GID}}"
    }
  },
  "runArgs": [
    "--device=/dev/kfd",
    "--device=/dev/dri",
    "--group-add={{.RenderGroupRef}}",
    "--group-add={{.VideoGroupRef}}",
    "--security-opt=seccomp=unconfined",
    "--shm-size={{.ShmSize}}"
  ],
  "containerEnv": {
    "HIP_VISIBLE_DEVICES": "0",
    "ROCR_VISIBLE_DEVICES": "0"
  },
  "remoteUser": "{{.UserName}}",
  "postCreateCommand": "python3 .devcontainer/{{.VerifierName}}",
  "customizations": {
    "vscode": {
      "extensions": [
{{- range $i, $ext := .Extensions}}
{{- if $i}},{{end}}
        "{{$ext}}"
{{- end}}
      ]
    }
  }
}
`

const verifierTemplate = `#!/usr/bin/env python3
"""Post-creation check: the container must expose a working ROCm backend."""
import sys


def fail(msg):
    print("verify-gpu: FAIL: " + msg, file=sys.stderr)
    sys.exit(1)


try:
    import torch
except ImportError as exc:
    fail("torch is not importable: %s" % exc)

hip = getattr(torch.version, "hip", None)
if not hip:
    fail("torch reports no HIP backend (expected a ROCm {{.Series}} build)")

if not torch.cuda.is_available():
    fail("no GPU visible to torch; check /dev/kfd and /dev/dri passthrough")

print("verify-gpu: OK: torch %s, HIP %s, %d device(s)"
      % (torch.__version__, hip, torch.cuda.device_count()))
`
