package store_test

import "github.com/pbaille/seen/internal/domain"

func newEntry(title, url string) domain.NewEntry {
	return domain.NewEntry{
		Title:  title,
		Task:   domain.DefaultTask,
		Fields: domain.FieldValues{"url": url},
	}
}
