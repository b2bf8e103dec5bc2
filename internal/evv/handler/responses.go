package handler

import "carebridge/internal/evv/models"

// BatchResponse mirrors the request item order.
type BatchResponse struct {
	Results []BatchItemResponse `json:"results"`
}

// BatchItemResponse carries either the item's feedback or its error.
type BatchItemResponse struct {
	VisitID  string                             `json:"visit_id"`
	Feedback *models.RealTimeValidationFeedback `json:"feedback,omitempty"`
	Error    string                             `json:"error,omitempty"`
}
