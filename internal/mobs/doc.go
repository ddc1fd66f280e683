// Package mobs reads mob records, the external data the site renders one page for.
//
// A record is a Markdown file with YAML front matter:
//
//	---
//	id: alpha
//	title: Alpha
//	subtitle: Weekly katas
//	participants:
//	  - name: Ada
//	    social: https://example.com/ada
//	  - hidden: true
//	schedule:
//	  - start: 2024-03-04T17:00:00Z
//	    duration: 2h
//	    repeat: 8
//	---
//	Free-form copy in Markdown.
//
// Sources return records in a stable order and never merge records that
// share an id; duplicate detection belongs to enumeration.
package mobs
