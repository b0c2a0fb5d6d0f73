package models

import "time"

type Space struct {
	ID          int64     `yaml:"id" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Capacity    int       `yaml:"capacity" json:"capacity"`
	Category    string    `yaml:"category" json:"category"`
	Location    string    `yaml:"location" json:"location"`
	Description string    `yaml:"description" json:"description"`
	CreatedAt   time.Time `yaml:"-" json:"created_at"`
}
