package models

import "github.com/medcamp-hub/backend/pkg/docstore"

// Document store collection names.
const (
	CollectionCamps         = "camps"
	CollectionRegistrations = "registrations"
	CollectionPayments      = "payments"
	CollectionUsers         = "users"
	CollectionFeedbacks     = "feedbacks"
)

// UniqueKeys mirrors the unique indexes of 001_documents.sql for the in-memory store.
var UniqueKeys = []docstore.UniqueKey{
	{Collection: CollectionPayments, Field: "transactionId"},
	{Collection: CollectionUsers, Field: "email"},
}
