package managers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/udovin/duel/internal/core"
	"github.com/udovin/duel/internal/events"
	"github.com/udovin/duel/internal/models"
	"github.com/udovin/duel/internal/pkg/logs"
	"github.com/udovin/duel/internal/pkg/random"
)

// TournamentManager drives tournaments through single elimination rounds.
type TournamentManager struct {
	core     *core.Core
	sessions *SessionManager
}

// NewTournamentManager creates a new instance of TournamentManager.
//
// Manager records outcomes of match sessions ended by session manager.
func NewTournamentManager(core *core.Core, sessions *SessionManager) *TournamentManager {
	m := TournamentManager{core: core, sessions: sessions}
	sessions.AddEndHook(m.onSessionEnd)
	return &m
}

// CreateTournamentForm represents form for creating tournament.
type CreateTournamentForm struct {
	Title    string `json:"title"`
	Capacity int64  `json:"capacity"`
}

func (f *CreateTournamentForm) validate() error {
	fields := map[string]string{}
	f.Title = strings.TrimSpace(f.Title)
	if len(f.Title) == 0 {
		fields["title"] = "Title is empty."
	} else if len(f.Title) > maxTitleLength {
		fields["title"] = "Title is too long."
	}
	if f.Capacity < 0 || f.Capacity == 1 {
		fields["capacity"] = "Capacity should be zero or at least two."
	}
	if len(fields) > 0 {
		return invalidFormError(fields)
	}
	return nil
}

// TournamentStartedPayload represents payload of tournament_started event.
type TournamentStartedPayload struct {
	TotalRounds  int64 `json:"total_rounds"`
	Participants int64 `json:"participants"`
}

// TournamentRoundPayload represents payload of tournament_round event.
type TournamentRoundPayload struct {
	Round   int64          `json:"round"`
	Matches []models.Match `json:"matches"`
}

// MatchPayload represents payload of match_completed event.
type MatchPayload struct {
	MatchID  int64  `json:"match_id"`
	Round    int64  `json:"round"`
	WinnerID int64  `json:"winner_id"`
	Manual   bool   `json:"manual,omitempty"`
	Session  string `json:"session_id,omitempty"`
}

// StandingPayload represents final standing of tournament participant.
type StandingPayload struct {
	ParticipantID int64 `json:"participant_id"`
	FinalRank     int64 `json:"final_rank"`
	RatingChange  int64 `json:"rating_change"`
}

// TournamentCompletedPayload represents payload of tournament_completed event.
type TournamentCompletedPayload struct {
	Standings []StandingPayload `json:"standings"`
}

func (m *TournamentManager) getTournament(ctx context.Context, id string, forUpdate bool) (models.Tournament, error) {
	get := m.core.Tournaments.Get
	if forUpdate {
		get = m.core.Tournaments.GetForUpdate
	}
	tournament, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Tournament{}, notFoundError("Tournament not found.")
		}
		return models.Tournament{}, err
	}
	return tournament, nil
}

func requireTournamentCreator(tournament models.Tournament, initiatorID int64) error {
	if tournament.CreatorID != initiatorID {
		return permissionError(NotCreator, "Only creator can manage tournament.")
	}
	return nil
}

func requireStatus(tournament models.Tournament, status models.TournamentStatus) error {
	if tournament.Status != status {
		return stateConflictError(
			InvalidState,
			fmt.Sprintf("Tournament should be in %q status.", status),
		)
	}
	return nil
}

// Create creates tournament in registration status.
func (m *TournamentManager) Create(
	ctx context.Context, creatorID int64, form CreateTournamentForm,
) (models.Tournament, error) {
	if err := form.validate(); err != nil {
		return models.Tournament{}, err
	}
	tournament := models.Tournament{
		Title:      form.Title,
		CreatorID:  creatorID,
		Capacity:   form.Capacity,
		Format:     models.SingleElimination,
		Status:     models.RegistrationTournament,
		CreateTime: m.core.Now().Unix(),
	}
	if err := m.core.Tournaments.Create(ctx, &tournament); err != nil {
		return models.Tournament{}, err
	}
	return tournament, nil
}

// Register adds participant to tournament roster.
func (m *TournamentManager) Register(ctx context.Context, tournamentID string, participantID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireStatus(tournament, models.RegistrationTournament); err != nil {
			return err
		}
		if _, err := m.core.TournamentParticipants.Get(ctx, tournamentID, participantID); err == nil {
			return stateConflictError(AlreadyJoined, "Participant has already registered.")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		count, err := m.core.TournamentParticipants.Count(ctx, tournamentID)
		if err != nil {
			return err
		}
		if tournament.Capacity > 0 && count >= tournament.Capacity {
			return newError(CapacityError, CapacityExceeded, "Tournament roster is full.")
		}
		if err := m.core.Profiles.Ensure(ctx, participantID); err != nil {
			return err
		}
		participant := models.TournamentParticipant{
			TournamentID:  tournamentID,
			ParticipantID: participantID,
			CreateTime:    m.core.Now().Unix(),
		}
		if err := m.core.TournamentParticipants.Create(ctx, &participant); err != nil {
			return err
		}
		queue.add(tournamentID, events.ParticipantJoined, ParticipantPayload{
			ParticipantID: participantID,
			Participants:  count + 1,
		})
		return nil
	})
}

// Unregister removes participant from tournament roster.
func (m *TournamentManager) Unregister(ctx context.Context, tournamentID string, participantID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireStatus(tournament, models.RegistrationTournament); err != nil {
			return err
		}
		participant, err := m.core.TournamentParticipants.Get(ctx, tournamentID, participantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return permissionError(NotParticipant, "Participant is not registered.")
			}
			return err
		}
		if err := m.core.TournamentParticipants.Delete(ctx, participant.ID); err != nil {
			return err
		}
		count, err := m.core.TournamentParticipants.Count(ctx, tournamentID)
		if err != nil {
			return err
		}
		queue.add(tournamentID, events.ParticipantLeft, ParticipantPayload{
			ParticipantID: participantID,
			Participants:  count,
		})
		return nil
	})
}

// Cancel cancels tournament that is not finished.
//
// Unfinished matches of started tournament are cancelled together with
// their active sessions, so nobody is rated for them.
func (m *TournamentManager) Cancel(ctx context.Context, tournamentID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		switch tournament.Status {
		case models.RegistrationTournament:
		case models.InProgressTournament:
			if err := m.cancelMatches(ctx, queue, tournamentID); err != nil {
				return err
			}
		default:
			return stateConflictError(InvalidState, "Tournament is already finished.")
		}
		tournament.Status = models.CancelledTournament
		tournament.EndTime = models.NInt64(m.core.Now().Unix())
		if err := m.core.Tournaments.Update(ctx, tournament); err != nil {
			return err
		}
		queue.add(tournamentID, events.TournamentCancelled, nil)
		return nil
	})
}

func (m *TournamentManager) cancelMatches(ctx context.Context, queue *eventQueue, tournamentID string) error {
	matches, err := m.core.Matches.FindByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	for _, match := range matches {
		if match.Status == models.CompletedMatch || match.Status == models.CancelledMatch {
			continue
		}
		if match.SessionID != "" {
			if err := m.sessions.abort(ctx, queue, string(match.SessionID)); err != nil {
				return err
			}
		}
		match.Status = models.CancelledMatch
		if err := m.core.Matches.Update(ctx, match); err != nil {
			return err
		}
	}
	return nil
}

// AddProblem adds problem to pool of tournament.
func (m *TournamentManager) AddProblem(
	ctx context.Context, tournamentID string, initiatorID int64, problemID int64,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.RegistrationTournament); err != nil {
			return err
		}
		if _, err := m.core.Problems.Get(ctx, problemID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFoundError("Problem not found.")
			}
			return err
		}
		pool, err := m.core.TournamentProblems.FindByTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		for _, problem := range pool {
			if problem.ProblemID == problemID {
				return invalidFormError(map[string]string{
					"problem_id": "Problem is already in pool.",
				})
			}
		}
		problem := models.TournamentProblem{
			TournamentID: tournamentID,
			ProblemID:    problemID,
		}
		return m.core.TournamentProblems.Create(ctx, &problem)
	})
}

// RemoveProblem removes problem from pool of tournament.
func (m *TournamentManager) RemoveProblem(
	ctx context.Context, tournamentID string, initiatorID int64, problemID int64,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.RegistrationTournament); err != nil {
			return err
		}
		ok, err := m.core.TournamentProblems.Delete(ctx, tournamentID, problemID)
		if err != nil {
			return err
		}
		if !ok {
			return notFoundError("Problem is not in pool.")
		}
		return nil
	})
}

func (m *TournamentManager) getPool(ctx context.Context, tournamentID string) ([]int64, error) {
	pool, err := m.core.TournamentProblems.FindByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	var problems []int64
	for _, problem := range pool {
		problems = append(problems, problem.ProblemID)
	}
	return problems, nil
}

// Start shuffles roster and creates matches of first round.
func (m *TournamentManager) Start(ctx context.Context, tournamentID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.RegistrationTournament); err != nil {
			return err
		}
		participants, err := m.core.TournamentParticipants.FindByTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if len(participants) < 2 {
			return stateConflictError(InsufficientParticipants, "Tournament requires at least two participants.")
		}
		pool, err := m.getPool(ctx, tournamentID)
		if err != nil {
			return err
		}
		if len(pool) == 0 {
			return stateConflictError(NoProblemsAvailable, "Tournament problem pool is empty.")
		}
		var roster []int64
		for _, participant := range participants {
			roster = append(roster, participant.ParticipantID)
		}
		roster = random.Shuffled(m.core.Random, roster)
		tournament.Status = models.InProgressTournament
		tournament.TotalRounds = TotalRounds(len(roster))
		tournament.CurrentRound = 1
		tournament.StartTime = models.NInt64(m.core.Now().Unix())
		if err := m.core.Tournaments.Update(ctx, tournament); err != nil {
			return err
		}
		queue.add(tournamentID, events.TournamentStarted, TournamentStartedPayload{
			TotalRounds:  tournament.TotalRounds,
			Participants: int64(len(roster)),
		})
		if err := m.createRound(ctx, tournament, roster, pool, queue); err != nil {
			return err
		}
		m.core.Logger().Info(
			"Tournament started",
			logs.Any("tournament_id", tournamentID),
			logs.Any("participants", len(roster)),
			logs.Any("total_rounds", tournament.TotalRounds),
		)
		return nil
	})
}

// createRound pairs consecutive entrants of current round.
//
// Last entrant of odd roster gets a bye and advances without session.
func (m *TournamentManager) createRound(
	ctx context.Context, tournament models.Tournament,
	entrants []int64, pool []int64, queue *eventQueue,
) error {
	round := tournament.CurrentRound
	var matches []models.Match
	for i := 0; i < len(entrants); i += 2 {
		match := models.Match{
			TournamentID:   tournament.ID,
			Round:          round,
			Number:         int64(i/2 + 1),
			Participant1ID: entrants[i],
		}
		if i+1 == len(entrants) {
			match.WinnerID = models.NInt64(entrants[i])
			match.Status = models.CompletedMatch
		} else {
			match.Participant2ID = models.NInt64(entrants[i+1])
			match.Status = models.InProgressMatch
			session, err := m.sessions.createMatchSession(
				ctx,
				fmt.Sprintf("%s: round %d, match %d", tournament.Title, round, match.Number),
				tournament.ID, entrants[i:i+2], pool, queue,
			)
			if err != nil {
				return err
			}
			match.SessionID = models.NString(session.ID)
		}
		if err := m.core.Matches.Create(ctx, &match); err != nil {
			return err
		}
		matches = append(matches, match)
	}
	queue.add(tournament.ID, events.TournamentRound, TournamentRoundPayload{
		Round:   round,
		Matches: matches,
	})
	return nil
}

// matchWinner returns winner of match by final participations.
//
// Full tie goes to second participant.
func matchWinner(match models.Match, participations []models.Participation) int64 {
	var first, second models.Participation
	for _, participation := range participations {
		switch participation.ParticipantID {
		case match.Participant1ID:
			first = participation
		case int64(match.Participant2ID):
			second = participation
		}
	}
	if first.Better(second) {
		return match.Participant1ID
	}
	return int64(match.Participant2ID)
}

func (m *TournamentManager) onSessionEnd(
	ctx context.Context, session models.Session, results []models.Participation,
) error {
	if session.TournamentID == "" {
		return nil
	}
	match, err := m.core.Matches.FindBySession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	queue, _ := ctx.Value(eventQueueKey{}).(*eventQueue)
	if queue == nil {
		queue = &eventQueue{}
	}
	return m.recordOutcome(ctx, match, results, queue)
}

func (m *TournamentManager) recordOutcome(
	ctx context.Context, match models.Match, results []models.Participation, queue *eventQueue,
) error {
	if match.Status == models.CompletedMatch {
		return nil
	}
	match.WinnerID = models.NInt64(matchWinner(match, results))
	match.Status = models.CompletedMatch
	if err := m.core.Matches.Update(ctx, match); err != nil {
		return err
	}
	queue.add(match.TournamentID, events.MatchCompleted, MatchPayload{
		MatchID:  match.ID,
		Round:    match.Round,
		WinnerID: int64(match.WinnerID),
		Session:  string(match.SessionID),
	})
	return nil
}

func (m *TournamentManager) getMatch(ctx context.Context, tournamentID string, matchID int64) (models.Match, error) {
	match, err := m.core.Matches.Get(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Match{}, notFoundError("Match not found.")
		}
		return models.Match{}, err
	}
	if match.TournamentID != tournamentID {
		return models.Match{}, notFoundError("Match not found.")
	}
	return match, nil
}

// RecordMatchOutcome sets winner of match whose session has ended.
func (m *TournamentManager) RecordMatchOutcome(ctx context.Context, tournamentID string, matchID int64) (models.Match, error) {
	var match models.Match
	err := runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		var err error
		match, err = m.getMatch(ctx, tournamentID, matchID)
		if err != nil {
			return err
		}
		if match.Status == models.CompletedMatch {
			return nil
		}
		session, err := m.sessions.getSession(ctx, string(match.SessionID), false)
		if err != nil {
			return err
		}
		if session.State != models.EndedSession {
			return stateConflictError(InvalidState, "Match session has not ended.")
		}
		participations, err := m.core.Participations.FindBySession(ctx, session.ID)
		if err != nil {
			return err
		}
		if err := m.recordOutcome(ctx, match, participations, queue); err != nil {
			return err
		}
		match, err = m.core.Matches.Get(ctx, matchID)
		return err
	})
	return match, err
}

// SetWinner manually sets winner of match in current round.
//
// Active match session is ended before override.
func (m *TournamentManager) SetWinner(
	ctx context.Context, tournamentID string, matchID int64, initiatorID int64, winnerID int64,
) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.InProgressTournament); err != nil {
			return err
		}
		match, err := m.getMatch(ctx, tournamentID, matchID)
		if err != nil {
			return err
		}
		if match.Round != tournament.CurrentRound || match.IsBye() {
			return stateConflictError(InvalidState, "Match winner cannot be changed.")
		}
		if !match.HasParticipant(winnerID) {
			return invalidFormError(map[string]string{
				"winner_id": "Winner should be participant of match.",
			})
		}
		if match.SessionID != "" {
			session, err := m.sessions.getSession(ctx, string(match.SessionID), false)
			if err != nil {
				return err
			}
			if session.State == models.ActiveSession {
				if _, err := m.sessions.End(ctx, session.ID, models.ManualEnd); err != nil {
					return err
				}
				if match, err = m.core.Matches.Get(ctx, matchID); err != nil {
					return err
				}
			}
		}
		match.WinnerID = models.NInt64(winnerID)
		match.Status = models.CompletedMatch
		if err := m.core.Matches.Update(ctx, match); err != nil {
			return err
		}
		queue.add(tournamentID, events.MatchCompleted, MatchPayload{
			MatchID:  match.ID,
			Round:    match.Round,
			WinnerID: winnerID,
			Manual:   true,
			Session:  string(match.SessionID),
		})
		return nil
	})
}

func (m *TournamentManager) roundWinners(ctx context.Context, tournament models.Tournament) ([]int64, error) {
	matches, err := m.core.Matches.FindByRound(ctx, tournament.ID, tournament.CurrentRound)
	if err != nil {
		return nil, err
	}
	var winners []int64
	for _, match := range matches {
		if match.WinnerID == 0 {
			return nil, stateConflictError(RoundNotComplete, "Not all matches of round have winner.")
		}
		winners = append(winners, int64(match.WinnerID))
	}
	return winners, nil
}

// AdvanceRound creates next round from winners of current round or
// finalizes tournament after last round.
func (m *TournamentManager) AdvanceRound(ctx context.Context, tournamentID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.InProgressTournament); err != nil {
			return err
		}
		winners, err := m.roundWinners(ctx, tournament)
		if err != nil {
			return err
		}
		if tournament.CurrentRound+1 > tournament.TotalRounds {
			return m.finalize(ctx, tournament, queue)
		}
		pool, err := m.getPool(ctx, tournamentID)
		if err != nil {
			return err
		}
		tournament.CurrentRound++
		if err := m.core.Tournaments.Update(ctx, tournament); err != nil {
			return err
		}
		return m.createRound(ctx, tournament, winners, pool, queue)
	})
}

// Finalize assigns final ranks after last round is complete.
func (m *TournamentManager) Finalize(ctx context.Context, tournamentID string, initiatorID int64) error {
	return runTx(m.core, ctx, func(ctx context.Context, queue *eventQueue) error {
		tournament, err := m.getTournament(ctx, tournamentID, true)
		if err != nil {
			return err
		}
		if err := requireTournamentCreator(tournament, initiatorID); err != nil {
			return err
		}
		if err := requireStatus(tournament, models.InProgressTournament); err != nil {
			return err
		}
		if tournament.CurrentRound != tournament.TotalRounds {
			return stateConflictError(RoundNotComplete, "Tournament has remaining rounds.")
		}
		if _, err := m.roundWinners(ctx, tournament); err != nil {
			return err
		}
		return m.finalize(ctx, tournament, queue)
	})
}

// eliminationRank returns rank of participant that lost in round.
func eliminationRank(round, totalRounds int64) int64 {
	return int64(1)<<(totalRounds-round) + 1
}

func (m *TournamentManager) finalize(
	ctx context.Context, tournament models.Tournament, queue *eventQueue,
) error {
	matches, err := m.core.Matches.FindByRound(ctx, tournament.ID, tournament.TotalRounds)
	if err != nil {
		return err
	}
	if len(matches) != 1 || matches[0].WinnerID == 0 {
		return stateConflictError(RoundNotComplete, "Final match has no winner.")
	}
	if _, err := m.core.TournamentParticipants.SetRank(
		ctx, tournament.ID, int64(matches[0].WinnerID), 1,
	); err != nil {
		return err
	}
	for round := tournament.TotalRounds; round >= 1; round-- {
		roundMatches, err := m.core.Matches.FindByRound(ctx, tournament.ID, round)
		if err != nil {
			return err
		}
		rank := eliminationRank(round, tournament.TotalRounds)
		for _, match := range roundMatches {
			loser := match.Loser()
			if loser == 0 {
				continue
			}
			if _, err := m.core.TournamentParticipants.SetRank(ctx, tournament.ID, loser, rank); err != nil {
				return err
			}
		}
	}
	participants, err := m.core.TournamentParticipants.FindByTournament(ctx, tournament.ID)
	if err != nil {
		return err
	}
	n := int64(len(participants))
	var payload TournamentCompletedPayload
	for _, participant := range participants {
		if participant.FinalRank == 0 {
			return fmt.Errorf("participant %d has no rank", participant.ParticipantID)
		}
		change := TournamentRatingChange(int64(participant.FinalRank), n)
		if err := m.core.Profiles.AddRating(ctx, participant.ParticipantID, change); err != nil {
			return err
		}
		if err := m.core.TournamentParticipants.SetRatingChange(ctx, participant.ID, change); err != nil {
			return err
		}
		payload.Standings = append(payload.Standings, StandingPayload{
			ParticipantID: participant.ParticipantID,
			FinalRank:     int64(participant.FinalRank),
			RatingChange:  change,
		})
	}
	tournament.Status = models.CompletedTournament
	tournament.EndTime = models.NInt64(m.core.Now().Unix())
	if err := m.core.Tournaments.Update(ctx, tournament); err != nil {
		return err
	}
	queue.add(tournament.ID, events.TournamentCompleted, payload)
	m.core.Logger().Info("Tournament completed", logs.Any("tournament_id", tournament.ID))
	return nil
}

// MatchSession returns session of match.
func (m *TournamentManager) MatchSession(ctx context.Context, tournamentID string, matchID int64) (models.Session, error) {
	match, err := m.getMatch(ctx, tournamentID, matchID)
	if err != nil {
		return models.Session{}, err
	}
	if match.SessionID == "" {
		return models.Session{}, notFoundError("Match has no session.")
	}
	return m.sessions.getSession(ctx, string(match.SessionID), false)
}

// TournamentView represents current state of tournament.
type TournamentView struct {
	Tournament   models.Tournament
	Participants []models.TournamentParticipant
	Matches      []models.Match
	Problems     []int64
}

// Observe returns current state of tournament.
func (m *TournamentManager) Observe(ctx context.Context, tournamentID string) (TournamentView, error) {
	var view TournamentView
	err := m.core.WrapTx(ctx, func(ctx context.Context) error {
		tournament, err := m.getTournament(ctx, tournamentID, false)
		if err != nil {
			return err
		}
		participants, err := m.core.TournamentParticipants.FindByTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		matches, err := m.core.Matches.FindByTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		problems, err := m.getPool(ctx, tournamentID)
		if err != nil {
			return err
		}
		view = TournamentView{
			Tournament:   tournament,
			Participants: participants,
			Matches:      matches,
			Problems:     problems,
		}
		return nil
	})
	return view, err
}

// FindOpen returns tournaments in registration status.
func (m *TournamentManager) FindOpen(ctx context.Context, limit int) ([]models.Tournament, error) {
	return m.core.Tournaments.FindByStatus(ctx, models.RegistrationTournament, limit)
}
