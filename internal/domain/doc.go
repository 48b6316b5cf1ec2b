// Package domain holds the core types shared by the ingest and broadcast layers.
package domain
