package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/divyandj/IMAGE-Hackathon/internal/models"
)

const (
	ImagesCollection = "images"
	UsersCollection  = "users"

	toggleAttempts = 3
)

var errLikeContention = errors.New("like toggle kept racing with concurrent updates")

type imageDocument struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	UserID    string        `bson:"user_id"`
	Title     string        `bson:"title"`
	Category  string        `bson:"category"`
	URL       string        `bson:"url"`
	Prompt    string        `bson:"prompt"`
	Likes     int           `bson:"likes"`
	LikedBy   []string      `bson:"liked_by,omitempty"`
	CreatedAt time.Time     `bson:"created_at"`
}

func (d imageDocument) model() models.Image {
	return models.Image{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Title:     d.Title,
		Category:  d.Category,
		URL:       d.URL,
		Prompt:    d.Prompt,
		Likes:     d.Likes,
		CreatedAt: d.CreatedAt,
	}
}

type MongoImageRepository struct {
	coll *mongo.Collection
}

func NewMongoImageRepository(db *mongo.Database) *MongoImageRepository {
	return &MongoImageRepository{coll: db.Collection(ImagesCollection)}
}

func (r *MongoImageRepository) Create(ctx context.Context, image models.Image) (string, error) {
	createdAt := image.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := r.coll.InsertOne(ctx, imageDocument{
		UserID:    image.UserID,
		Title:     image.Title,
		Category:  image.Category,
		URL:       image.URL,
		Prompt:    image.Prompt,
		Likes:     0,
		LikedBy:   []string{},
		CreatedAt: createdAt,
	})
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return oid.Hex(), nil
}

func (r *MongoImageRepository) List(ctx context.Context) ([]models.Image, error) {
	return r.find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *MongoImageRepository) ListByUser(ctx context.Context, userID string) ([]models.Image, error) {
	return r.find(ctx, bson.D{{Key: "user_id", Value: userID}}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (r *MongoImageRepository) TopLiked(ctx context.Context, limit int) ([]models.Image, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "likes", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, opts)
}

func (r *MongoImageRepository) GetByID(ctx context.Context, id string) (models.Image, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return models.Image{}, ErrImageNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoImageRepository) FindByURL(ctx context.Context, url string) (models.Image, error) {
	return r.findOne(ctx, bson.D{{Key: "url", Value: url}})
}

func (r *MongoImageRepository) ToggleLike(ctx context.Context, imageID string, userID string) (models.LikeResult, error) {
	oid, err := bson.ObjectIDFromHex(imageID)
	if err != nil {
		return models.LikeResult{}, ErrImageNotFound
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.D{{Key: "likes", Value: 1}})

	// Each update is a single-document conditional write, so the liker set and the
	// counter never drift. Losing both races means another request flipped the state
	// in between; try again from the top.
	for attempt := 0; attempt < toggleAttempts; attempt++ {
		var doc imageDocument
		err := r.coll.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: oid}, {Key: "liked_by", Value: bson.D{{Key: "$ne", Value: userID}}}},
			bson.D{
				{Key: "$addToSet", Value: bson.D{{Key: "liked_by", Value: userID}}},
				{Key: "$inc", Value: bson.D{{Key: "likes", Value: 1}}},
			},
			opts,
		).Decode(&doc)
		if err == nil {
			return models.LikeResult{ImageID: imageID, Likes: doc.Likes, Liked: true}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return models.LikeResult{}, err
		}

		err = r.coll.FindOneAndUpdate(ctx,
			bson.D{{Key: "_id", Value: oid}, {Key: "liked_by", Value: userID}},
			bson.D{
				{Key: "$pull", Value: bson.D{{Key: "liked_by", Value: userID}}},
				{Key: "$inc", Value: bson.D{{Key: "likes", Value: -1}}},
			},
			opts,
		).Decode(&doc)
		if err == nil {
			return models.LikeResult{ImageID: imageID, Likes: doc.Likes, Liked: false}, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return models.LikeResult{}, err
		}

		n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return models.LikeResult{}, err
		}
		if n == 0 {
			return models.LikeResult{}, ErrImageNotFound
		}
	}
	return models.LikeResult{}, errLikeContention
}

func (r *MongoImageRepository) findOne(ctx context.Context, filter bson.D) (models.Image, error) {
	var doc imageDocument
	opts := options.FindOne().SetProjection(bson.D{{Key: "liked_by", Value: 0}})
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Image{}, ErrImageNotFound
		}
		return models.Image{}, err
	}
	return doc.model(), nil
}

func (r *MongoImageRepository) find(ctx context.Context, filter bson.D, opts *options.FindOptionsBuilder) ([]models.Image, error) {
	opts.SetProjection(bson.D{{Key: "liked_by", Value: 0}})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var docs []imageDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	images := make([]models.Image, 0, len(docs))
	for _, doc := range docs {
		images = append(images, doc.model())
	}
	return images, nil
}
