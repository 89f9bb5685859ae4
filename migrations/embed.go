// Package migrations 把 SQL 迁移文件打进二进制。
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
