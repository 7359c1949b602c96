package controllers

import (
	"lms/access"
	"lms/logger"
	"lms/playback"
	"lms/progress"
)

// Wired engine components, set once from main before routes are mounted.
var (
	Gate          *access.Gate
	Issuer        *playback.Issuer
	Sessions      *playback.Manager
	ProgressStore *progress.Store
	ProgressView  *progress.ViewCache
	Log           *logger.Logger
)

// Init wires the lesson access and completion engine into the course
// controllers.
func Init(gate *access.Gate, issuer *playback.Issuer, sessions *playback.Manager, store *progress.Store, view *progress.ViewCache, log *logger.Logger) {
	Gate = gate
	Issuer = issuer
	Sessions = sessions
	ProgressStore = store
	ProgressView = view
	Log = log.With("area", "course")
}
