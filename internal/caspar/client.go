/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package caspar sends AMCP transport commands to a CasparCG playout server.
package caspar

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

const commandTimeout = 2 * time.Second

// Client issues AMCP commands over a fresh, short-lived TCP connection per
// command. The response is a single line of text; it is returned unparsed
// because the controller does not verify on-air success.
type Client struct {
	addr            string
	channel         int
	layer           int
	captionLayer    int
	captionTemplate string
	audioChannels   int
	audioMap        string
	logger          zerolog.Logger
}

// Options configures the playout client.
type Options struct {
	Addr            string
	Channel         int
	Layer           int
	CaptionLayer    int
	CaptionTemplate string
	AudioChannels   int    // 0 omits --audioChannels
	AudioMap        string // empty omits --audioMap
}

// NewClient creates a playout client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	return &Client{
		addr:            opts.Addr,
		channel:         opts.Channel,
		layer:           opts.Layer,
		captionLayer:    opts.CaptionLayer,
		captionTemplate: opts.CaptionTemplate,
		audioChannels:   opts.AudioChannels,
		audioMap:        opts.AudioMap,
		logger:          logger.With().Str("component", "caspar").Logger(),
	}
}

// PlayClip issues a PLAY command for the normalized clip path.
func (c *Client) PlayClip(path string) (string, error) {
	cmd := fmt.Sprintf("PLAY %d-%d %q", c.channel, c.layer, path)
	if c.audioChannels > 0 {
		cmd += fmt.Sprintf(" --audioChannels %d", c.audioChannels)
	}
	if c.audioMap != "" {
		cmd += fmt.Sprintf(" --audioMap %s", c.audioMap)
	}
	return c.send(cmd)
}

// OverlayCaption issues a CG ADD command with a JSON payload on the caption
// layer. Optional instrumentation; the control loop does not require it.
func (c *Client) OverlayCaption(text string) (string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("encode caption payload: %w", err)
	}
	cmd := fmt.Sprintf("CG ADD %d-%d 0 %q 1 %q", c.channel, c.captionLayer, c.captionTemplate, string(payload))
	return c.send(cmd)
}

func (c *Client) send(cmd string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, commandTimeout)
	if err != nil {
		c.logger.Error().Err(err).Str("cmd", cmd).Msg("caspar connect failed")
		return "", fmt.Errorf("connect %s: %w", c.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(commandTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write([]byte(cmd + "\r\n")); err != nil {
		c.logger.Error().Err(err).Str("cmd", cmd).Msg("caspar write failed")
		return "", fmt.Errorf("send command: %w", err)
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		c.logger.Error().Err(err).Str("cmd", cmd).Msg("caspar read failed")
		return "", fmt.Errorf("read response: %w", err)
	}

	resp := trimCRLF(line)
	c.logger.Debug().Str("cmd", cmd).Str("response", resp).Msg("caspar command sent")
	return resp, nil
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
