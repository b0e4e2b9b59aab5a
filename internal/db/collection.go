package db

import (
	"context"

	"github.com/ukydev/fleet-ifta/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReturnCollection defines the interface for quarterly return data operations.
// Stored quarters are never updated: a corrected quarter is inserted anew.
type ReturnCollection interface {
	InsertReturn(ctx context.Context, data *models.IFTAQuarterlyData) (primitive.ObjectID, error)
	FindReturnByID(ctx context.Context, id string) (*models.IFTAQuarterlyData, error)
	FindReturns(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (ReturnCursor, error)
}

// ReturnCursor defines the interface for return cursor operations.
type ReturnCursor interface {
	All(ctx context.Context, out interface{}) error
	Close(ctx context.Context) error
}

// SubmissionCollection defines the interface for submission result operations.
type SubmissionCollection interface {
	RecordSubmission(ctx context.Context, resp models.IFTAResponse) error
	FindSubmissionByID(ctx context.Context, id string) (*models.IFTAResponse, error)
	FindSubmissionsByReturn(ctx context.Context, returnID string) ([]models.IFTAResponse, error)
}
