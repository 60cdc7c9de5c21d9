// Package game runs rounds of the box game.
//
// A Session owns nothing but the round loop: the host's fair.Protocol makes
// every random draw, a strategy.Strategy removes boxes, and a Peer answers
// the questions. Each round performs two exchanges, one to hide the prize
// and one inside the strategy, and discloses both before the result is
// announced so the peer can check them.
//
// # Basic Usage
//
//	host := fair.New("Morty", p, out)
//	strat, _ := strategy.NewUniform(3, host)
//	s, _ := game.NewSession(game.Config{Boxes: 3}, host, strat, p, out)
//	tally, err := s.Run(ctx)
//
// Observers receive every completed round, which is how transcripts are
// built. Rounds that fail are aborted and never reach statistics or
// observers.
package game
