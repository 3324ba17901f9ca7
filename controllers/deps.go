package controllers

import (
	"atlas-civico/config"
	"atlas-civico/geocode"
	"atlas-civico/session"
	"atlas-civico/votes"
)

var (
	sessions   *session.Manager
	reconciler *votes.Reconciler
	geocoder   *geocode.Client
)

// Init wires the collaborators the handlers depend on. Called once at startup,
// after the database connection is established.
func Init(s *session.Manager, r *votes.Reconciler, g *geocode.Client) {
	sessions = s
	reconciler = r
	geocoder = g
	issueCollection = config.GetCollection("issues")
	userCollection = config.GetCollection("users")
}
