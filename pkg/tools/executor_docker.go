/*
Copyright © 2025 3 Leaps <info@3leaps.com>
*/
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/fulmenhq/hookgate/pkg/logger"
)

// ImageOverrideEnvPrefix allows overriding a tool image, e.g. HOOKGATE_IMAGE_TRIVY.
const ImageOverrideEnvPrefix = "HOOKGATE_IMAGE_"

// defaultImages maps collaborator tools to upstream images whose entrypoint is the tool.
var defaultImages = map[string]string{
	"hadolint":    "hadolint/hadolint:latest-debian",
	"trivy":       "aquasec/trivy:latest",
	"tfsec":       "aquasec/tfsec:latest",
	"checkov":     "bridgecrew/checkov:latest",
	"terrascan":   "tenable/terrascan:latest",
	"tflint":      "ghcr.io/terraform-linters/tflint:latest",
	"gitleaks":    "zricethezav/gitleaks:latest",
	"actionlint":  "rhysd/actionlint:latest",
	"shfmt":       "mvdan/shfmt:latest",
	"yamllint":    "cytopia/yamllint:latest",
	"kubeconform": "ghcr.io/yannh/kubeconform:latest",
}

// DockerExecutor runs tools from their upstream container images
type DockerExecutor struct {
	images     map[string]string
	dockerPath string
}

// NewDockerExecutor creates a new DockerExecutor
func NewDockerExecutor() *DockerExecutor {
	images := make(map[string]string, len(defaultImages))
	for tool, image := range defaultImages {
		if override := os.Getenv(ImageOverrideEnvPrefix + strings.ToUpper(tool)); override != "" {
			image = override
		}
		images[tool] = image
	}

	dockerPath, _ := exec.LookPath("docker")

	return &DockerExecutor{
		images:     images,
		dockerPath: dockerPath,
	}
}

// Name returns the executor name
func (e *DockerExecutor) Name() string {
	return "docker"
}

// IsAvailable checks if docker is available and the tool has an image
func (e *DockerExecutor) IsAvailable(tool string) bool {
	if e.dockerPath == "" {
		return false
	}
	_, ok := e.images[tool]
	return ok
}

// DockerAvailable returns true if docker is installed and accessible
func (e *DockerExecutor) DockerAvailable() bool {
	return e.dockerPath != ""
}

// ImageFor returns the image used for a tool.
func (e *DockerExecutor) ImageFor(tool string) (string, bool) {
	img, ok := e.images[tool]
	return img, ok
}

// Execute runs the tool via docker
func (e *DockerExecutor) Execute(ctx context.Context, opts ExecuteOptions) (*ExecuteResult, error) {
	if e.dockerPath == "" {
		return nil, fmt.Errorf("%w: docker not found in PATH", ErrToolNotFound)
	}
	image, ok := e.images[opts.Tool]
	if !ok {
		return nil, fmt.Errorf("%w: no container image known for %s", ErrToolNotFound, opts.Tool)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	// docker run --rm -v "$ROOT:/work" -w /work <image> <args>
	dockerArgs := []string{
		"run", "--rm",
		"-v", fmt.Sprintf("%s:/work", workDir),
		"-w", "/work",
	}

	for k, v := range opts.Env {
		dockerArgs = append(dockerArgs, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	if opts.Stdin != nil {
		dockerArgs = append(dockerArgs, "-i")
	}

	dockerArgs = append(dockerArgs, image)
	dockerArgs = append(dockerArgs, opts.Args...)

	logger.Debug("docker executor: running", logger.String("tool", opts.Tool), logger.String("image", image))

	// #nosec G204 - dockerPath comes from exec.LookPath, image from a fixed table or explicit override
	cmd := exec.CommandContext(ctx, e.dockerPath, dockerArgs...)

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	var stdout, stderr bytes.Buffer
	if opts.Output != nil {
		cmd.Stdout = opts.Output
		cmd.Stderr = opts.Output
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()

	result := &ExecuteResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Executor: "docker",
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("docker execution failed: %w", err)
	}

	return result, nil
}
