package procman

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPortPriority(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want string
	}{
		{
			name: "vite local banner",
			log:  "  VITE v5.0.0  ready in 320 ms\n\n  ➜  Local:   http://localhost:5173/\n",
			want: "5173",
		},
		{
			name: "last local banner wins over earlier warning",
			log: "warn: localhost:3000 was taken\n" +
				"Local: http://localhost:3000 unavailable\n" +
				"Local: http://localhost:3002\n",
			want: "3002",
		},
		{
			name: "server banner",
			log:  "server listening at localhost:8080\n",
			want: "8080",
		},
		{
			name: "localized banner",
			log:  "应用正在运行: http://localhost:9000\n",
			want: "9000",
		},
		{
			name: "raw localhost fallback takes the last mention",
			log:  "proxy to localhost:4000\nready at localhost:4001\n",
			want: "4001",
		},
		{
			name: "bare port fallback",
			log:  "listening on port 7777\n",
			want: "7777",
		},
		{
			name: "no port",
			log:  "compiled successfully\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractPort(tt.log))
		})
	}
}

func TestSuccessPatterns(t *testing.T) {
	ready := []string{
		"✓ Ready in 2.3s",
		"webpack 5.88.0 compiled successfully in 1200 ms",
		"Listening on http://0.0.0.0:3000",
		"🚀 服务启动成功",
		"  ➜  Local:   http://localhost:5173/",
	}
	for _, log := range ready {
		assert.True(t, matchesAny(successPatterns, log), log)
	}

	notReady := []string{
		"Compiling...",
		"Installing dependencies",
	}
	for _, log := range notReady {
		assert.False(t, matchesAny(successPatterns, log), log)
	}
}

func TestErrorPatterns(t *testing.T) {
	fatal := []string{
		"Error: Cannot find module 'express'",
		"Error: listen EADDRINUSE: address already in use :::3000",
		"FATAL ERROR: Reached heap limit",
	}
	for _, log := range fatal {
		assert.True(t, matchesAny(errorPatterns, log), log)
	}
	assert.False(t, matchesAny(errorPatterns, "✓ ready in 500ms"))
}

func TestInstallNeededPatterns(t *testing.T) {
	needy := []string{
		"Error: Cannot find module 'react'",
		"ModuleNotFoundError: No module named 'flask'",
		"sh: vite: command not found",
		"npm ERR! Please run npm install first",
	}
	for _, log := range needy {
		assert.True(t, matchesAny(installNeededPatterns, log), log)
	}
	assert.False(t, matchesAny(installNeededPatterns, "Segmentation fault"))
}

func TestDetectFramework(t *testing.T) {
	assert.Equal(t, "Vite", detectFramework("VITE v5.0.0 ready in 300 ms"))
	assert.Equal(t, "Next.js", detectFramework("▲ Next.js 14.0.1"))
	assert.Equal(t, "", detectFramework("python app.py running"))
}

func TestLogTail(t *testing.T) {
	log := "a\nb\nc\nd\ne\n"
	assert.Equal(t, "d\ne", logTail(log, 2))
	assert.Equal(t, "a\nb\nc\nd\ne", logTail(log, 10))
}
