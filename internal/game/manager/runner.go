package manager

import (
	"time"

	"topthat/internal/game/bot"
	"topthat/internal/game/rules"
	"topthat/internal/game/session"
	"topthat/internal/utils"
)

// Hooks let the network layer observe completed room operations without
// the game layer ever reaching outward to the transport.
type Hooks struct {
	// OnChange fires after every completed mutation with the result of the
	// action (nil for plain state pushes). The session is safe to read for
	// the duration of the callback only.
	OnChange func(sess *session.Session, res *session.PlayResult, actorID string)
	// OnGameOver fires once, after the change that finished the game.
	OnGameOver func(sess *session.Session)
}

// Runner serializes all actions for a single room on one goroutine. That
// is the whole concurrency model: no locks around the session, because
// only the runner's loop ever touches it.
type Runner struct {
	Sess *session.Session

	actions         chan func()
	quit            chan struct{}
	cpuDelay        time.Duration
	cpuSpecialDelay time.Duration
	cpuPending      bool
	startedAt       time.Time
	hooks           Hooks
}

func newRunner(sess *session.Session, cpuDelay, cpuSpecialDelay time.Duration, hooks Hooks) *Runner {
	return &Runner{
		Sess:            sess,
		actions:         make(chan func(), 32),
		quit:            make(chan struct{}),
		cpuDelay:        cpuDelay,
		cpuSpecialDelay: cpuSpecialDelay,
		startedAt:       time.Now(),
		hooks:           hooks,
	}
}

func (r *Runner) run() {
	for {
		select {
		case f := <-r.actions:
			f()
			r.maybeScheduleCPU()
		case <-r.quit:
			return
		}
	}
}

// Do enqueues one action for serial execution on the room loop. Events for
// a room are processed to completion in arrival order.
func (r *Runner) Do(f func()) {
	select {
	case r.actions <- f:
	case <-r.quit:
	}
}

// SubmitPlay runs a play on the room loop. reply is invoked (still on the
// loop) with the outcome so the caller can acknowledge its client; a
// rejected play mutates nothing and is reported to that caller alone.
func (r *Runner) SubmitPlay(playerID string, indices []int, zone session.Zone, reply func(*session.PlayResult, error)) {
	r.Do(func() {
		res, err := r.Sess.PlayCards(playerID, indices, zone)
		r.finishAction(res, err, playerID, reply)
	})
}

func (r *Runner) SubmitPickup(playerID string, reply func(*session.PlayResult, error)) {
	r.Do(func() {
		res, err := r.Sess.PickUpPile(playerID)
		r.finishAction(res, err, playerID, reply)
	})
}

// SubmitDisconnect marks the seat disconnected; the player's cards stay on
// the table for a later rejoin.
func (r *Runner) SubmitDisconnect(playerID string) {
	r.Do(func() {
		r.Sess.RemovePlayer(playerID)
		if r.hooks.OnChange != nil {
			r.hooks.OnChange(r.Sess, nil, playerID)
		}
	})
}

func (r *Runner) SubmitReconnect(playerID string, reply func(error)) {
	r.Do(func() {
		err := r.Sess.Reconnect(playerID)
		if reply != nil {
			reply(err)
		}
		if err == nil && r.hooks.OnChange != nil {
			r.hooks.OnChange(r.Sess, nil, playerID)
		}
	})
}

func (r *Runner) finishAction(res *session.PlayResult, err error, actorID string, reply func(*session.PlayResult, error)) {
	if reply != nil {
		reply(res, err)
	}
	if err != nil {
		return
	}
	if r.hooks.OnChange != nil {
		r.hooks.OnChange(r.Sess, res, actorID)
	}
	if res.GameOver && r.hooks.OnGameOver != nil {
		r.hooks.OnGameOver(r.Sess)
	}
}

func (r *Runner) stop() {
	close(r.quit)
}

// maybeScheduleCPU arms a delayed bot move when the turn lands on a
// computer seat. The delay keeps the game readable for humans. The armed
// move re-checks the turn when it fires, since a rejoin or disconnect can
// land in between.
func (r *Runner) maybeScheduleCPU() {
	if r.cpuPending || r.Sess.Phase() != session.InProgress {
		return
	}
	cur := r.currentPlayer()
	if cur == nil || !cur.IsComputer {
		return
	}
	r.cpuPending = true
	botID := cur.ID

	// Linger a little longer after a special card so its animation lands.
	delay := r.cpuDelay
	if pile := r.Sess.Pile(); len(pile) > 0 && rules.IsSpecial(pile[len(pile)-1].Value) {
		delay = r.cpuSpecialDelay
	}

	time.AfterFunc(delay, func() {
		r.Do(func() {
			r.cpuPending = false
			if r.Sess.Phase() != session.InProgress || r.Sess.CurrentPlayerID() != botID {
				return
			}
			r.playBotMove(botID)
		})
	})
}

func (r *Runner) playBotMove(botID string) {
	move := bot.ChooseMove(r.Sess, botID)

	var res *session.PlayResult
	var err error
	if move.Action == bot.ActionPickup {
		res, err = r.Sess.PickUpPile(botID)
	} else {
		res, err = r.Sess.PlayCards(botID, move.Indices, move.Zone)
	}
	if err != nil {
		// the policy should never produce an illegal move; fall back to a
		// pickup so the game cannot wedge
		utils.Error.Printf("room %s: bot %s move rejected: %v", r.Sess.RoomCode, botID, err)
		res, err = r.Sess.PickUpPile(botID)
		if err != nil {
			return
		}
	}

	r.finishAction(res, nil, botID, nil)
}

func (r *Runner) currentPlayer() *playerInfo {
	id := r.Sess.CurrentPlayerID()
	for _, p := range r.Sess.Players() {
		if p.ID == id {
			return &playerInfo{ID: p.ID, IsComputer: p.IsComputer}
		}
	}
	return nil
}

type playerInfo struct {
	ID         string
	IsComputer bool
}
