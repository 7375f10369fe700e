// Package appfs embeds the SQL migrations and the email templates shipped with the binaries.
package appfs

import "embed"

//go:embed migrations/*.sql assets/templates/email/*
var FS embed.FS
