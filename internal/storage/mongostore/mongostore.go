// Package mongostore backs the record collections with MongoDB. It is the only
// backend with a server-side get-or-create (FindOneAndUpdate with upsert).
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"aurora/internal/record"
)

// Collection names.
const (
	CollectionUsers  = "users"
	CollectionGuilds = "guilds"
)

// mongoClient captures the subset of mongo.Client behavior we rely on.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// collection is the slice of *mongo.Collection the store uses.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	FindOneAndUpdate(ctx context.Context, filter interface{}, update interface{}, opts ...*options.FindOneAndUpdateOptions) *mongo.SingleResult
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteMany(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

type userDoc struct {
	ID        string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	GuildID   string    `bson:"guild_id"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type guildDoc struct {
	ID        string    `bson:"_id"`
	GuildID   string    `bson:"guild_id"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	client mongoClient
	users  collection
	guilds collection
}

// Open connects to uri, verifies connectivity and ensures indexes on database.
func Open(ctx context.Context, uri, database string, log *logrus.Entry) (*Store, error) {
	client, err := connectMongo(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("%w: connect mongo: %w", record.ErrUnavailable, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping mongo: %w", record.ErrUnavailable, err)
	}

	db := client.Database(database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	if log != nil {
		log.WithField("database", database).Info("Mongo store initialized")
	}
	return &Store{
		client: client,
		users:  db.Collection(CollectionUsers),
		guilds: db.Collection(CollectionGuilds),
	}, nil
}

// newStore wires arbitrary collections; used by tests.
func newStore(users, guilds collection) *Store {
	return &Store{users: users, guilds: guilds}
}

// ensureIndexes creates lookup indexes. They are not unique: duplicate records
// per key are representable on every backend.
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	userIndexes := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("guild_user_created"),
	}}
	if _, err := db.Collection(CollectionUsers).Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("%w: create users indexes: %w", record.ErrUnavailable, err)
	}

	guildIndexes := []mongo.IndexModel{{
		Keys:    bson.D{{Key: "guild_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("guild_created"),
	}}
	if _, err := db.Collection(CollectionGuilds).Indexes().CreateMany(ctx, guildIndexes); err != nil {
		return fmt.Errorf("%w: create guilds indexes: %w", record.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Users() record.UserCollection   { return users{s.users} }
func (s *Store) Guilds() record.GuildCollection { return guilds{s.guilds} }

// Close disconnects the Mongo client.
func (s *Store) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, record.ErrUnavailable, err)
}

var oldestFirst = bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}

// setData builds a $set document targeting individual payload keys so
// fields absent from data are left alone.
func setData(data record.Fields, at time.Time) (bson.M, error) {
	set := bson.M{"updated_at": at}
	for k, v := range data.Clean() {
		if k == "" || strings.ContainsAny(k, ".$") {
			return nil, fmt.Errorf("invalid field name %q", k)
		}
		set["data."+k] = v
	}
	return bson.M{"$set": set}, nil
}

func toBSON(f record.Fields) bson.M {
	out := bson.M{}
	for k, v := range f.Clean() {
		out[k] = v
	}
	return out
}

func toFields(m bson.M) record.Fields {
	out := make(record.Fields, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d userDoc) record() *record.User {
	return &record.User{ID: d.ID, UserID: d.UserID, GuildID: d.GuildID, Data: toFields(d.Data), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (d guildDoc) record() *record.Guild {
	return &record.Guild{ID: d.ID, GuildID: d.GuildID, Data: toFields(d.Data), CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

type users struct{ c collection }

func userFilter(key record.UserKey) bson.M {
	return bson.M{"guild_id": key.GuildID, "user_id": key.UserID}
}

func (u users) Create(ctx context.Context, key record.UserKey, data record.Fields) (*record.User, error) {
	at := now()
	doc := userDoc{ID: uuid.NewString(), UserID: key.UserID, GuildID: key.GuildID, Data: toBSON(data), CreatedAt: at, UpdatedAt: at}
	if _, err := u.c.InsertOne(ctx, doc); err != nil {
		return nil, unavailable("insert user", err)
	}
	return doc.record(), nil
}

func (u users) FindFirst(ctx context.Context, key record.UserKey) (*record.User, error) {
	var doc userDoc
	err := u.c.FindOne(ctx, userFilter(key), options.FindOne().SetSort(oldestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find user", err)
	}
	return doc.record(), nil
}

func (u users) UpsertUser(ctx context.Context, key record.UserKey, defaults record.Fields) (*record.User, error) {
	at := now()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        uuid.NewString(),
		"data":       toBSON(defaults),
		"created_at": at,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetSort(oldestFirst).
		SetReturnDocument(options.After)

	var doc userDoc
	if err := u.c.FindOneAndUpdate(ctx, userFilter(key), update, opts).Decode(&doc); err != nil {
		return nil, unavailable("upsert user", err)
	}
	return doc.record(), nil
}

func (u users) UpdateMany(ctx context.Context, key record.UserKey, data record.Fields) (int64, error) {
	update, err := setData(data, now())
	if err != nil {
		return 0, err
	}
	res, err := u.c.UpdateMany(ctx, userFilter(key), update)
	if err != nil {
		return 0, unavailable("update users", err)
	}
	return res.MatchedCount, nil
}

func (u users) DeleteMany(ctx context.Context, key record.UserKey) (int64, error) {
	res, err := u.c.DeleteMany(ctx, userFilter(key))
	if err != nil {
		return 0, unavailable("delete users", err)
	}
	return res.DeletedCount, nil
}

type guilds struct{ c collection }

func guildFilter(guildID string) bson.M {
	return bson.M{"guild_id": guildID}
}

func (g guilds) Create(ctx context.Context, guildID string, data record.Fields) (*record.Guild, error) {
	at := now()
	doc := guildDoc{ID: uuid.NewString(), GuildID: guildID, Data: toBSON(data), CreatedAt: at, UpdatedAt: at}
	if _, err := g.c.InsertOne(ctx, doc); err != nil {
		return nil, unavailable("insert guild", err)
	}
	return doc.record(), nil
}

func (g guilds) FindFirst(ctx context.Context, guildID string) (*record.Guild, error) {
	var doc guildDoc
	err := g.c.FindOne(ctx, guildFilter(guildID), options.FindOne().SetSort(oldestFirst)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, record.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find guild", err)
	}
	return doc.record(), nil
}

func (g guilds) UpsertGuild(ctx context.Context, guildID string, defaults record.Fields) (*record.Guild, error) {
	at := now()
	update := bson.M{"$setOnInsert": bson.M{
		"_id":        uuid.NewString(),
		"data":       toBSON(defaults),
		"created_at": at,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetSort(oldestFirst).
		SetReturnDocument(options.After)

	var doc guildDoc
	if err := g.c.FindOneAndUpdate(ctx, guildFilter(guildID), update, opts).Decode(&doc); err != nil {
		return nil, unavailable("upsert guild", err)
	}
	return doc.record(), nil
}

func (g guilds) UpdateMany(ctx context.Context, guildID string, data record.Fields) (int64, error) {
	update, err := setData(data, now())
	if err != nil {
		return 0, err
	}
	res, err := g.c.UpdateMany(ctx, guildFilter(guildID), update)
	if err != nil {
		return 0, unavailable("update guilds", err)
	}
	return res.MatchedCount, nil
}

func (g guilds) DeleteMany(ctx context.Context, guildID string) (int64, error) {
	res, err := g.c.DeleteMany(ctx, guildFilter(guildID))
	if err != nil {
		return 0, unavailable("delete guilds", err)
	}
	return res.DeletedCount, nil
}
