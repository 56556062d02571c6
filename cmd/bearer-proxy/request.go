package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvcrn/bearer-proxy/internal/client"
)

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Send an authenticated GET and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, http.MethodGet, args[0])
		},
	}
	addRequestFlags(cmd)
	return cmd
}

func newPostCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <path>",
		Short: "Send an authenticated POST and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, http.MethodPost, args[0])
		},
	}
	addRequestFlags(cmd)
	cmd.Flags().StringP("data", "d", "", "request body, or @file to read it from a file")
	return cmd
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("param", "P", nil, "query parameter key=value (repeatable)")
	cmd.Flags().StringArrayP("header", "H", nil, "request header 'Key: value' (repeatable)")
}

func runRequest(cmd *cobra.Command, method, path string) error {
	params, err := parseParams(cmd)
	if err != nil {
		return err
	}
	header, err := parseHeaders(cmd)
	if err != nil {
		return err
	}

	req := &client.Descriptor{
		Method: method,
		URL:    path,
		Params: params,
		Header: header,
	}
	if cmd.Flags().Lookup("data") != nil {
		data, _ := cmd.Flags().GetString("data")
		body, err := readBody(data)
		if err != nil {
			return err
		}
		if len(body) > 0 {
			req.Body = body
		}
	}

	a, log, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer closeApp(a, log)

	resp, err := a.Client.Do(cmd.Context(), req)
	if err != nil {
		return err
	}

	return writeBody(cmd.OutOrStdout(), resp.Body)
}

func parseParams(cmd *cobra.Command) (url.Values, error) {
	raw, _ := cmd.Flags().GetStringArray("param")
	if len(raw) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for _, p := range raw {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", p)
		}
		params.Add(key, value)
	}
	return params, nil
}

func parseHeaders(cmd *cobra.Command) (http.Header, error) {
	raw, _ := cmd.Flags().GetStringArray("header")
	header := http.Header{}
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --header %q, want 'Key: value'", h)
		}
		header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return header, nil
}

func readBody(data string) ([]byte, error) {
	path, ok := strings.CutPrefix(data, "@")
	if !ok {
		return []byte(data), nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

// writeBody prints JSON payloads indented and everything else as-is.
func writeBody(w io.Writer, body []byte) error {
	var buf bytes.Buffer
	if json.Valid(body) && json.Indent(&buf, body, "", "  ") == nil {
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	}
	_, err := w.Write(body)
	return err
}
