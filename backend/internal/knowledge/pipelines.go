package knowledge

import (
	"context"
	"fmt"
	"math"
	"strings"

	"content-graph/backend/internal/graph"
)

const (
	weightDefault      = 1.0
	weightTaggedWith   = 0.8
	weightCompetesIn   = 0.9
	weightAchievedBy   = 1.0
	scoreForFullWeight = 1000.0
)

// step is one idempotent unit of a pipeline. Steps run in order and share
// state through the closures the pipeline builds.
type step struct {
	name string
	run  func(ctx context.Context, s *UpdateSummary) error
}

// runSteps executes steps in order and stops at the first failure, leaving
// earlier writes in place.
func (e *Engine) runSteps(ctx context.Context, steps []step) (*UpdateSummary, error) {
	summary := newUpdateSummary()
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			summary.Partial = true
			return summary, fmt.Errorf("step %s: %w", st.name, err)
		}
		if err := st.run(ctx, summary); err != nil {
			summary.Partial = true
			return summary, fmt.Errorf("step %s: %w", st.name, err)
		}
		summary.CompletedSteps = append(summary.CompletedSteps, st.name)
	}
	return summary, nil
}

// upsertNodeInto upserts a node and records it in the summary
func (e *Engine) upsertNodeInto(ctx context.Context, s *UpdateSummary, in graph.NodeInput) (*graph.Node, error) {
	node, err := e.UpsertNode(ctx, in)
	if err != nil {
		return nil, err
	}
	s.Nodes = append(s.Nodes, *node)
	return node, nil
}

// linkInto upserts a relationship and records it in the summary
func (e *Engine) linkInto(ctx context.Context, s *UpdateSummary, in graph.RelationshipInput) error {
	rel, err := e.UpsertRelationship(ctx, in)
	if err != nil {
		return err
	}
	s.Relationships = append(s.Relationships, *rel)
	return nil
}

// attach upserts a node and an edge from source to it
func (e *Engine) attach(ctx context.Context, s *UpdateSummary, source *graph.Node, target graph.NodeInput, relType graph.RelationshipType, weight float64, props graph.Properties) error {
	node, err := e.upsertNodeInto(ctx, s, target)
	if err != nil {
		return err
	}
	return e.linkInto(ctx, s, graph.RelationshipInput{
		FromID:     source.ID,
		ToID:       node.ID,
		Type:       relType,
		Weight:     weight,
		Properties: props,
	})
}

// mentionConcepts upserts a concept node and a mentions edge per concept
func (e *Engine) mentionConcepts(ctx context.Context, s *UpdateSummary, source *graph.Node, concepts []Concept) error {
	for _, c := range concepts {
		err := e.attach(ctx, s, source,
			graph.NodeInput{Type: graph.NodeTypeConcept, Name: c.Name},
			graph.RelMentions, c.Confidence,
			graph.Properties{
				"count":   graph.Int(int64(c.Count)),
				"context": graph.String(c.Context),
			})
		if err != nil {
			return err
		}
		s.Concepts = append(s.Concepts, c)
	}
	return nil
}

// ============================================================================
// content_published
// ============================================================================

func (e *Engine) contentPipeline(p ContentPublishedPayload) []step {
	var post *graph.Node
	body := plainText(p.Content)

	steps := []step{{
		name: "upsert_post",
		run: func(ctx context.Context, s *UpdateSummary) error {
			props := graph.Properties{"title": graph.String(p.Title)}
			setIfPresent(props, "source_id", p.ID)
			setIfPresent(props, "slug", p.Slug)
			setIfPresent(props, "summary", p.Summary)
			setIfPresent(props, "content", body)
			setIfPresent(props, "published_at", p.PublishedAt)

			var err error
			post, err = e.upsertNodeInto(ctx, s, graph.NodeInput{
				Type:       graph.NodeTypePost,
				Name:       strings.TrimSpace(p.Title),
				Properties: props,
			})
			return err
		},
	}}

	if author := strings.TrimSpace(p.Author); author != "" {
		steps = append(steps, step{
			name: "link_author",
			run: func(ctx context.Context, s *UpdateSummary) error {
				return e.attach(ctx, s, post,
					graph.NodeInput{Type: graph.NodeTypeAuthor, Name: author},
					graph.RelAuthoredBy, weightDefault, nil)
			},
		})
	}

	if category := strings.TrimSpace(p.Category); category != "" {
		steps = append(steps, step{
			name: "link_category",
			run: func(ctx context.Context, s *UpdateSummary) error {
				return e.attach(ctx, s, post,
					graph.NodeInput{Type: graph.NodeTypeCategory, Name: category},
					graph.RelCategorizedAs, weightDefault, nil)
			},
		})
	}

	if tags := uniqueNonEmpty(p.Tags); len(tags) > 0 {
		steps = append(steps, step{
			name: "link_tags",
			run: func(ctx context.Context, s *UpdateSummary) error {
				for _, tag := range tags {
					err := e.attach(ctx, s, post,
						graph.NodeInput{Type: graph.NodeTypeTag, Name: tag},
						graph.RelTaggedWith, weightTaggedWith, nil)
					if err != nil {
						return err
					}
				}
				return nil
			},
		})
	}

	if concepts := ExtractConcepts(body); len(concepts) > 0 {
		steps = append(steps, step{
			name: "link_concepts",
			run: func(ctx context.Context, s *UpdateSummary) error {
				return e.mentionConcepts(ctx, s, post, concepts)
			},
		})
	}

	steps = append(steps, step{
		name: "link_similar",
		run: func(ctx context.Context, s *UpdateSummary) error {
			if len(post.Embedding) == 0 {
				return nil
			}
			links, err := e.LinkSimilar(ctx, post)
			s.Relationships = append(s.Relationships, links...)
			return err
		},
	})
	return steps
}

// ============================================================================
// game_session_completed
// ============================================================================

func (e *Engine) gameSessionPipeline(p GameSessionPayload) []step {
	var game, player *graph.Node

	steps := []step{
		{
			name: "upsert_game",
			run: func(ctx context.Context, s *UpdateSummary) error {
				var err error
				game, err = e.upsertNodeInto(ctx, s, graph.NodeInput{
					Type:       graph.NodeTypeGame,
					Name:       strings.TrimSpace(p.GameType),
					Properties: graph.Properties{"game_type": graph.String(p.GameType)},
				})
				return err
			},
		},
		{
			name: "upsert_player",
			run: func(ctx context.Context, s *UpdateSummary) error {
				var err error
				player, err = e.upsertNodeInto(ctx, s, graph.NodeInput{
					Type:       graph.NodeTypePlayer,
					Name:       strings.TrimSpace(p.UserID),
					Properties: graph.Properties{"user_id": graph.String(p.UserID)},
				})
				return err
			},
		},
		{
			name: "link_session",
			run: func(ctx context.Context, s *UpdateSummary) error {
				props := graph.Properties{
					"score":    graph.Number(p.Score),
					"level":    graph.Int(int64(p.Level)),
					"duration": graph.Number(p.Duration),
				}
				setIfPresent(props, "completed_at", p.CompletedAt)
				return e.linkInto(ctx, s, graph.RelationshipInput{
					FromID:     game.ID,
					ToID:       player.ID,
					Type:       graph.RelPlayedBy,
					Weight:     sessionWeight(p.Score),
					Properties: props,
				})
			},
		},
	}

	if achievements := uniqueNonEmpty(p.Achievements); len(achievements) > 0 {
		steps = append(steps, step{
			name: "link_achievements",
			run: func(ctx context.Context, s *UpdateSummary) error {
				for _, name := range achievements {
					achievement, err := e.upsertNodeInto(ctx, s, graph.NodeInput{
						Type: graph.NodeTypeAchievement,
						Name: name,
					})
					if err != nil {
						return err
					}
					props := graph.Properties{"game": graph.String(p.GameType)}
					setIfPresent(props, "unlocked_at", p.CompletedAt)
					err = e.linkInto(ctx, s, graph.RelationshipInput{
						FromID:     achievement.ID,
						ToID:       player.ID,
						Type:       graph.RelAchievedBy,
						Weight:     weightAchievedBy,
						Properties: props,
					})
					if err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	return steps
}

// sessionWeight maps a score onto [0,1], saturating at 1000 points
func sessionWeight(score float64) float64 {
	return math.Max(0, math.Min(score/scoreForFullWeight, 1.0))
}

// ============================================================================
// sports_fixture_updated
// ============================================================================

func (e *Engine) sportsFixturePipeline(p SportsFixturePayload) []step {
	steps := make([]step, 0, len(p.Games))
	for i, fixture := range p.Games {
		fixture := fixture
		steps = append(steps, step{
			name: fmt.Sprintf("fixture_%d", i),
			run: func(ctx context.Context, s *UpdateSummary) error {
				teamProps := graph.Properties{}
				setIfPresent(teamProps, "league", p.League)

				home, err := e.upsertNodeInto(ctx, s, graph.NodeInput{
					Type:       graph.NodeTypeSportsTeam,
					Name:       strings.TrimSpace(fixture.HomeTeam),
					Properties: teamProps,
				})
				if err != nil {
					return err
				}
				away, err := e.upsertNodeInto(ctx, s, graph.NodeInput{
					Type:       graph.NodeTypeSportsTeam,
					Name:       strings.TrimSpace(fixture.AwayTeam),
					Properties: teamProps.Clone(),
				})
				if err != nil {
					return err
				}

				props := graph.Properties{}
				setIfPresent(props, "league", p.League)
				setIfPresent(props, "status", fixture.Status)
				setIfPresent(props, "venue", fixture.Venue)
				setIfPresent(props, "start_time", fixture.StartTime)
				if fixture.HomeScore != nil {
					props["home_score"] = graph.Int(int64(*fixture.HomeScore))
				}
				if fixture.AwayScore != nil {
					props["away_score"] = graph.Int(int64(*fixture.AwayScore))
				}

				return e.linkInto(ctx, s, graph.RelationshipInput{
					FromID:     home.ID,
					ToID:       away.ID,
					Type:       graph.RelCompetesIn,
					Weight:     weightCompetesIn,
					Properties: props,
				})
			},
		})
	}
	return steps
}

// ============================================================================
// chat_conversation_created
// ============================================================================

func (e *Engine) chatConversationPipeline(p ChatConversationPayload) []step {
	var conversation *graph.Node

	parts := make([]string, 0, len(p.Messages))
	for _, m := range p.Messages {
		if text := strings.TrimSpace(m.Content); text != "" {
			parts = append(parts, text)
		}
	}
	transcript := strings.Join(parts, " ")

	steps := []step{{
		name: "upsert_conversation",
		run: func(ctx context.Context, s *UpdateSummary) error {
			props := graph.Properties{"message_count": graph.Int(int64(len(p.Messages)))}
			setIfPresent(props, "provider", p.Provider)
			setIfPresent(props, "model", p.Model)
			setIfPresent(props, "profile", p.Profile)

			var err error
			conversation, err = e.upsertNodeInto(ctx, s, graph.NodeInput{
				Type:       graph.NodeTypeChatConversation,
				Name:       strings.TrimSpace(p.ConversationID),
				Properties: props,
			})
			return err
		},
	}}

	if concepts := ExtractConcepts(transcript); len(concepts) > 0 {
		steps = append(steps, step{
			name: "link_concepts",
			run: func(ctx context.Context, s *UpdateSummary) error {
				return e.mentionConcepts(ctx, s, conversation, concepts)
			},
		})
	}
	return steps
}

func setIfPresent(props graph.Properties, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		props[key] = graph.String(v)
	}
}

// uniqueNonEmpty trims values and drops blanks and repeats, keeping order
func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
