// Package appfs embeds the static assets shipped with the binaries.
package appfs

import "embed"

//go:embed assets/* migrations/*.sql templates/email/*
var FS embed.FS
