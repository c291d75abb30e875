package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/riskibarqy/draftwire/internal/conn"
	"github.com/riskibarqy/draftwire/internal/domain/draft"
	"github.com/riskibarqy/draftwire/internal/domain/journal"
	"github.com/riskibarqy/draftwire/internal/infrastructure/journalwriter"
	"github.com/riskibarqy/draftwire/internal/processor"
	"github.com/riskibarqy/draftwire/internal/resolver"
	"github.com/riskibarqy/draftwire/internal/state"
	"github.com/riskibarqy/draftwire/internal/validate"
)

const (
	defaultAvailableLimit = 50
	defaultSearchLimit    = 10
	defaultFrameLimit     = 100
)

// DraftState is the dashboard read model: live draft summary plus the
// feed connection snapshot.
type DraftState struct {
	Draft      state.Summary `json:"draft"`
	Connection conn.Status   `json:"connection"`
}

// AnnotatedPick is a history entry with the display name joined in.
type AnnotatedPick struct {
	PickNumber int       `json:"pickNumber"`
	TeamID     int       `json:"teamId"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Position   string    `json:"position"`
	Timestamp  time.Time `json:"timestamp"`
}

type RosterSlot struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type RosterView struct {
	TeamID    int                     `json:"teamId"`
	Mine      bool                    `json:"mine"`
	PickCount int                     `json:"pickCount"`
	Slots     map[string][]RosterSlot `json:"slots"`
}

type AvailableView struct {
	Total   int          `json:"total"`
	Players []RosterSlot `json:"players"`
}

type ValidationView struct {
	Valid       bool     `json:"valid"`
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// FrameEntry is one archived feed frame as the audit surface shows it.
type FrameEntry struct {
	Seq        int64     `json:"seq"`
	Kind       string    `json:"kind"`
	PickNumber int       `json:"pickNumber,omitempty"`
	TeamID     int       `json:"teamId,omitempty"`
	PlayerID   string    `json:"playerId,omitempty"`
	Raw        string    `json:"raw"`
	ParseError bool      `json:"parseError"`
	ReceivedAt time.Time `json:"receivedAt"`
}

type FrameLogView struct {
	Total  int64        `json:"total"`
	Frames []FrameEntry `json:"frames"`
}

type PlayerMatch struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	ProTeam  string `json:"proTeam"`
	Drafted  bool   `json:"drafted"`
	Distance int    `json:"distance"`
}

// EngineStats aggregates the counters every component keeps for the
// operator dashboard.
type EngineStats struct {
	Processor  processor.Stats     `json:"processor"`
	Resolver   resolver.Stats      `json:"resolver"`
	Journal    journalwriter.Stats `json:"journal"`
	Connection conn.Status         `json:"connection"`
	UptimeMs   int64               `json:"uptimeMs"`
}

type processorStatsSource interface {
	Stats() processor.Stats
}

type journalStatsSource interface {
	Stats() journalwriter.Stats
}

type feedStatusSource interface {
	Status() conn.Status
}

// playerAnnotator joins display names onto picks and reports resolver
// queue stats. *resolver.Service satisfies it.
type playerAnnotator interface {
	DisplayName(ctx context.Context, playerID string) string
	Stats() resolver.Stats
}

// DraftQueryService serves every read the status surface exposes.
type DraftQueryService struct {
	store     *state.Store
	validator *validate.Validator
	directory draft.Directory
	annotator playerAnnotator
	proc      processorStatsSource
	journal   journalStatsSource
	frameLog  journal.Repository
	feed      feedStatusSource
	startedAt time.Time
}

func NewDraftQueryService(
	store *state.Store,
	validator *validate.Validator,
	directory draft.Directory,
	annotator playerAnnotator,
	proc processorStatsSource,
	journalStats journalStatsSource,
	frameLog journal.Repository,
	feed feedStatusSource,
) *DraftQueryService {
	return &DraftQueryService{
		store:     store,
		validator: validator,
		directory: directory,
		annotator: annotator,
		proc:      proc,
		journal:   journalStats,
		frameLog:  frameLog,
		feed:      feed,
		startedAt: time.Now().UTC(),
	}
}

// State works before a session is configured too: the summary carries
// zeros and the connection block tells the operator what is going on.
func (s *DraftQueryService) State(ctx context.Context) (DraftState, error) {
	_, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.State")
	defer span.End()

	out := DraftState{Draft: s.store.Summary()}
	if s.feed != nil {
		out.Connection = s.feed.Status()
	}
	return out, nil
}

func (s *DraftQueryService) Picks(ctx context.Context) ([]AnnotatedPick, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Picks")
	defer span.End()

	history := s.store.History()
	out := make([]AnnotatedPick, 0, len(history))
	for _, pick := range history {
		out = append(out, AnnotatedPick{
			PickNumber: pick.PickNumber,
			TeamID:     pick.TeamID,
			PlayerID:   pick.PlayerID,
			PlayerName: s.displayName(ctx, pick.PlayerID),
			Position:   string(pick.Position),
			Timestamp:  pick.Timestamp,
		})
	}
	return out, nil
}

// Roster returns one team's roster buckets. teamID 0 means mine, which
// requires a configured session.
func (s *DraftQueryService) Roster(ctx context.Context, teamID int) (RosterView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Roster")
	defer span.End()

	session, configured := s.store.Session()
	if teamID == 0 {
		if !configured {
			return RosterView{}, fmt.Errorf("%w: no session configured, pass team_id explicitly", ErrNotFound)
		}
		teamID = session.MyTeamID
	}
	if teamID < 0 {
		return RosterView{}, fmt.Errorf("%w: team id must be positive", ErrInvalidInput)
	}

	roster, _ := s.store.RosterOf(teamID)
	slots := make(map[string][]RosterSlot, len(roster))
	count := 0
	for pos, players := range roster {
		bucket := make([]RosterSlot, 0, len(players))
		for _, id := range players {
			bucket = append(bucket, RosterSlot{PlayerID: id, PlayerName: s.displayName(ctx, id)})
		}
		slots[string(pos)] = bucket
		count += len(players)
	}

	return RosterView{
		TeamID:    teamID,
		Mine:      configured && teamID == session.MyTeamID,
		PickCount: count,
		Slots:     slots,
	}, nil
}

func (s *DraftQueryService) Available(ctx context.Context, limit int) (AvailableView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Available")
	defer span.End()

	if limit < 0 {
		return AvailableView{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	if limit == 0 {
		limit = defaultAvailableLimit
	}

	ids := s.store.AvailablePlayers()
	out := AvailableView{Total: len(ids)}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out.Players = make([]RosterSlot, 0, len(ids))
	for _, id := range ids {
		out.Players = append(out.Players, RosterSlot{PlayerID: id, PlayerName: s.displayName(ctx, id)})
	}
	return out, nil
}

func (s *DraftQueryService) Validation(ctx context.Context) (ValidationView, error) {
	_, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Validation")
	defer span.End()

	result := s.validator.Validate(s.store.View())
	return ValidationView{
		Valid:       result.Valid,
		Errors:      result.Errors,
		Warnings:    result.Warnings,
		Suggestions: result.Suggestions,
	}, nil
}

func (s *DraftQueryService) Snapshots(ctx context.Context) ([]state.SnapshotMeta, error) {
	_, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Snapshots")
	defer span.End()

	return s.store.SnapshotMetas(), nil
}

// Frames tails the feed journal, newest first. kind filters on the
// wire command, empty means everything including malformed frames.
func (s *DraftQueryService) Frames(ctx context.Context, kind string, limit int) (FrameLogView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Frames")
	defer span.End()

	if s.frameLog == nil {
		return FrameLogView{}, fmt.Errorf("%w: frame journal is not configured", ErrNotFound)
	}
	if limit < 0 {
		return FrameLogView{}, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	if limit == 0 {
		limit = defaultFrameLimit
	}

	entries, err := s.frameLog.Recent(ctx, strings.ToUpper(strings.TrimSpace(kind)), limit)
	if err != nil {
		return FrameLogView{}, fmt.Errorf("%w: read frame journal: %v", ErrDependencyUnavailable, err)
	}
	total, err := s.frameLog.Count(ctx)
	if err != nil {
		return FrameLogView{}, fmt.Errorf("%w: count frame journal: %v", ErrDependencyUnavailable, err)
	}

	out := FrameLogView{Total: total, Frames: make([]FrameEntry, 0, len(entries))}
	for _, entry := range entries {
		out.Frames = append(out.Frames, FrameEntry{
			Seq:        entry.Seq,
			Kind:       entry.Kind,
			PickNumber: entry.PickNumber,
			TeamID:     entry.TeamID,
			PlayerID:   entry.PlayerID,
			Raw:        entry.Raw,
			ParseError: entry.ParseError,
			ReceivedAt: entry.ReceivedAt,
		})
	}
	return out, nil
}

// SearchPlayers ranks directory entries against the query with
// normalized case-folding fuzzy matching, best matches first.
func (s *DraftQueryService) SearchPlayers(ctx context.Context, query string, limit int) ([]PlayerMatch, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.SearchPlayers")
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrInvalidInput)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrInvalidInput)
	}
	if limit == 0 {
		limit = defaultSearchLimit
	}

	players, err := s.directory.AllPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list directory players: %w", err)
	}

	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}

	drafted := s.store.View().Drafted
	out := make([]PlayerMatch, 0, len(ranks))
	for _, rank := range ranks {
		p := players[rank.OriginalIndex]
		_, taken := drafted[p.ID]
		out = append(out, PlayerMatch{
			ID:       p.ID,
			Name:     p.Name,
			Position: string(p.Position),
			ProTeam:  p.ProTeam,
			Drafted:  taken,
			Distance: rank.Distance,
		})
	}
	return out, nil
}

func (s *DraftQueryService) Stats(ctx context.Context) (EngineStats, error) {
	_, span := startUsecaseSpan(ctx, "usecase.DraftQueryService.Stats")
	defer span.End()

	out := EngineStats{UptimeMs: time.Since(s.startedAt).Milliseconds()}
	if s.proc != nil {
		out.Processor = s.proc.Stats()
	}
	if s.annotator != nil {
		out.Resolver = s.annotator.Stats()
	}
	if s.journal != nil {
		out.Journal = s.journal.Stats()
	}
	if s.feed != nil {
		out.Connection = s.feed.Status()
	}
	return out, nil
}

func (s *DraftQueryService) displayName(ctx context.Context, playerID string) string {
	if s.annotator == nil {
		return draft.DisplayName(playerID, "")
	}
	return s.annotator.DisplayName(ctx, playerID)
}
