package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

func parseCommand(kind, command string) ([]string, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse %s command: %w", kind, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s command is empty", kind)
	}
	return args, nil
}

type execRecognizer struct {
	cmd []string
}

type execTranscript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// NewExecRecognizer runs command with --audio <path> [--language L] and
// reads a JSON {"text","confidence"} object from its stdout.
func NewExecRecognizer(command string) (Recognizer, error) {
	args, err := parseCommand("recognize", command)
	if err != nil {
		return nil, err
	}
	return &execRecognizer{cmd: args}, nil
}

func (r *execRecognizer) Recognize(ctx context.Context, audioPath, language string) (Transcript, error) {
	args := append([]string{}, r.cmd[1:]...)
	args = append(args, "--audio", audioPath)
	if language != "" {
		args = append(args, "--language", language)
	}

	out, err := run(ctx, exec.CommandContext(ctx, r.cmd[0], args...), nil)
	if err != nil {
		return Transcript{}, fmt.Errorf("recognize: %w", err)
	}

	var resp execTranscript
	if err := json.Unmarshal(out, &resp); err != nil {
		return Transcript{}, fmt.Errorf("decode recognizer response: %w", err)
	}
	return Transcript{Text: resp.Text, Confidence: resp.Confidence, Language: language}, nil
}

type execSynthesizer struct {
	cmd []string
}

type execSynthRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type execSynthResponse struct {
	AudioBase64 string `json:"audio_base64"`
}

// NewExecSynthesizer runs command with a JSON {"text","voice"} request on
// stdin and expects {"audio_base64"} on stdout.
func NewExecSynthesizer(command string) (Synthesizer, error) {
	args, err := parseCommand("synthesize", command)
	if err != nil {
		return nil, err
	}
	return &execSynthesizer{cmd: args}, nil
}

func (s *execSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	req, err := json.Marshal(execSynthRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, err
	}

	out, err := run(ctx, exec.CommandContext(ctx, s.cmd[0], s.cmd[1:]...), req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}

	var resp execSynthResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode synthesizer response: %w", err)
	}
	return DecodeAudio(resp.AudioBase64)
}

// DecodeAudio decodes a base64 audio payload as returned by speech
// services.
func DecodeAudio(payload string) ([]byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, errors.New("empty audio payload")
	}
	audio, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode audio payload: %w", err)
	}
	return audio, nil
}

func run(ctx context.Context, cmd *exec.Cmd, stdin []byte) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %w: %s", cmd.Path, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
