package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Room lookups that race with teardown are handled as no-ops instead; these
// sentinels cover the cases a client is told about.
var (
	errRoomNotFound   = errors.New("room not found")
	errRoomFull       = errors.New("room is full")
	errAlreadyStarted = errors.New("game already started")
	errInvalidToken   = errors.New("unknown reconnect token")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
	htmlBody.WriteString(`<meta name="theme-color" content="#1e293b">`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
