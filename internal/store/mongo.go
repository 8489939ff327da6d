package store

import (
	"context"
	"errors"

	"spotfix-widget-service/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Each record lives as a single upserted document identified by recordID.
const recordID = "default"

// MongoStore persists the settings and provisioning records in MongoDB.
type MongoStore struct {
	settings *mongo.Collection
	prov     *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		settings: db.Collection("widget_settings"),
		prov:     db.Collection("provisioning_state"),
	}
}

func (s *MongoStore) LoadSettings(ctx context.Context) (models.WidgetSettings, error) {
	var doc struct {
		models.WidgetSettings `bson:",inline"`
		RecordID              string `bson:"record_id"`
	}

	err := s.settings.FindOne(ctx, bson.M{"record_id": recordID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.DefaultWidgetSettings(), nil
	}
	if err != nil {
		return models.WidgetSettings{}, err
	}

	if !doc.Visibility.Valid() {
		doc.Visibility = models.VisibilityEveryone
	}
	return doc.WidgetSettings, nil
}

func (s *MongoStore) SaveSettings(ctx context.Context, settings models.WidgetSettings) error {
	update := bson.M{"$set": bson.M{
		"record_id":  recordID,
		"code":       settings.Code,
		"visibility": settings.Visibility,
		"status":     settings.Status,
		"error":      settings.Error,
	}}

	_, err := s.settings.UpdateOne(ctx, bson.M{"record_id": recordID}, update,
		options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) LoadProvisioning(ctx context.Context) (models.ProvisioningState, error) {
	var doc struct {
		models.ProvisioningState `bson:",inline"`
		RecordID                 string `bson:"record_id"`
	}

	err := s.prov.FindOne(ctx, bson.M{"record_id": recordID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ProvisioningState{}, nil
	}
	if err != nil {
		return models.ProvisioningState{}, err
	}
	return doc.ProvisioningState, nil
}

func (s *MongoStore) UpdateProvisioning(ctx context.Context, fields map[string]string) error {
	set := bson.M{"record_id": recordID}
	for key, value := range fields {
		set[key] = value
	}

	_, err := s.prov.UpdateOne(ctx, bson.M{"record_id": recordID},
		bson.M{"$set": set}, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) ResetProvisioning(ctx context.Context) error {
	_, err := s.prov.DeleteOne(ctx, bson.M{"record_id": recordID})
	return err
}
