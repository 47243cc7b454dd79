package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/boulevardgame/backend/internal/game/models"
)

// GameStore handles database operations for games. Codes are only
// unique among games still in play, so lookups always exclude the
// finished ones.
type GameStore struct {
	games *mongo.Collection
}

// NewGameStore creates a new GameStore
func NewGameStore(db *mongo.Database, collection string) *GameStore {
	return &GameStore{
		games: db.Collection(collection),
	}
}

// EnsureIndexes creates the code+status lookup index.
func (s *GameStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.games.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "code", Value: 1}, {Key: "status", Value: 1}},
	})
	return err
}

// CreateGame inserts a new game
func (s *GameStore) CreateGame(ctx context.Context, game *models.Game) error {
	res, err := s.games.InsertOne(ctx, game)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		game.ID = id
	}
	return nil
}

// GetGameByCode finds a joinable or running game by its code.
func (s *GameStore) GetGameByCode(ctx context.Context, code string) (*models.Game, error) {
	var game models.Game
	err := s.games.FindOne(ctx, bson.M{
		"code":   code,
		"status": bson.M{"$in": []models.GameStatus{models.GameStatusLobby, models.GameStatusActive}},
	}).Decode(&game)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrInvalidGameCode
		}
		return nil, err
	}
	return &game, nil
}

// SaveGame overwrites the stored document with the authoritative
// in-memory state.
func (s *GameStore) SaveGame(ctx context.Context, game *models.Game) error {
	game.UpdatedAt = time.Now()
	_, err := s.games.ReplaceOne(ctx,
		bson.M{"_id": game.ID},
		game,
		options.Replace().SetUpsert(true))
	return err
}

// UpdateStatus flips a game's status.
func (s *GameStore) UpdateStatus(ctx context.Context, game *models.Game, status models.GameStatus) error {
	game.Status = status
	_, err := s.games.UpdateOne(ctx,
		bson.M{"_id": game.ID},
		bson.M{"$set": bson.M{
			"status":    status,
			"updatedAt": time.Now(),
		}})
	return err
}

// TouchActivity bumps the inactivity clock.
func (s *GameStore) TouchActivity(ctx context.Context, game *models.Game) error {
	now := time.Now()
	game.LastActivity = now
	_, err := s.games.UpdateOne(ctx,
		bson.M{"_id": game.ID},
		bson.M{"$set": bson.M{"lastActivity": now}})
	return err
}

// FindStaleGames returns unfinished games idle since before cutoff.
func (s *GameStore) FindStaleGames(ctx context.Context, cutoff time.Time) ([]models.Game, error) {
	cursor, err := s.games.Find(ctx, bson.M{
		"status":       bson.M{"$in": []models.GameStatus{models.GameStatusLobby, models.GameStatusActive}},
		"lastActivity": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var games []models.Game
	if err := cursor.All(ctx, &games); err != nil {
		return nil, err
	}
	return games, nil
}
