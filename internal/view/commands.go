package view

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"inventory-view-sync/internal/apierror"
	"inventory-view-sync/internal/models"
	"inventory-view-sync/internal/notify"
)

const (
	maxNameLength = 100
	maxNoteLength = 100
)

// Command sources, used as notification sources
const (
	SourceCreateItem   = "create_item"
	SourceUpdateItem   = "update_item"
	SourcePostMovement = "post_movement"
)

// MovementInput is a stock movement entered for one row
type MovementInput struct {
	SKU          string              `json:"sku"`
	WarehouseID  models.WarehouseID  `json:"warehouseId"`
	ActivityType models.ActivityType `json:"activityType"`
	Qty          int                 `json:"qty"`
	Note         string              `json:"note"`
}

// CreateItem validates and creates an item. On success every fetcher is
// refreshed.
func (v *View) CreateItem(ctx context.Context, name string, warehouseID models.WarehouseID, image string) error {
	v.touch()

	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}
	if strings.TrimSpace(string(warehouseID)) == "" {
		return validationError("Please select warehouse")
	}

	resp, err := v.api.CreateItem(ctx, models.CreateItemRequest{
		Name:        name,
		Image:       image,
		WarehouseID: warehouseID,
	})
	if err != nil {
		return v.commandFailed(SourceCreateItem, "Create Inventory Failed!", err)
	}

	v.commandSucceeded(SourceCreateItem, resp, "Inventory item created successfully")
	return nil
}

// UpdateItemName renames sku
func (v *View) UpdateItemName(ctx context.Context, sku, name string) error {
	v.touch()

	sku = strings.TrimSpace(sku)
	if sku == "" {
		return validationError("sku is required")
	}
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return err
	}

	resp, err := v.api.UpdateItem(ctx, sku, models.UpdateItemRequest{Name: name})
	if err != nil {
		return v.commandFailed(SourceUpdateItem, "Update Inventory Failed!", err)
	}

	v.commandSucceeded(SourceUpdateItem, resp, "Inventory item updated successfully")
	return nil
}

// PostMovement records a stock movement. On success the row's history is
// reloaded and every fetcher is refreshed.
func (v *View) PostMovement(ctx context.Context, in MovementInput) error {
	v.touch()

	req, err := v.movementRequest(in)
	if err != nil {
		return err
	}

	resp, err := v.api.PostMovement(ctx, req)
	if err != nil {
		return v.commandFailed(SourcePostMovement, "Add Movement Failed!", err)
	}

	if err := v.movements.Load(req.SKU, true); err != nil {
		v.logger.Warn("Could not reload movements", "sku", req.SKU, "error", err)
	}
	v.commandSucceeded(SourcePostMovement, resp, "Movement added successfully")
	return nil
}

func (v *View) movementRequest(in MovementInput) (models.MovementRequest, error) {
	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		return models.MovementRequest{}, validationError("sku is required")
	}
	if strings.TrimSpace(string(in.WarehouseID)) == "" {
		return models.MovementRequest{}, validationError("Please select warehouse")
	}
	if !in.ActivityType.Valid() {
		return models.MovementRequest{}, validationError("Please select activity")
	}
	if in.Qty < 1 {
		return models.MovementRequest{}, validationError("Quantity must be greater than 0")
	}
	if in.ActivityType == models.ActivityOutbound {
		if available, ok := v.listedQty(sku); ok && in.Qty > available {
			return models.MovementRequest{}, validationError(fmt.Sprintf("Quantity must be less than or equal to %d", available))
		}
	}

	req := models.MovementRequest{
		SKU:          sku,
		ActivityType: in.ActivityType,
		Qty:          in.Qty,
		WarehouseID:  in.WarehouseID,
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		if utf8.RuneCountInString(note) > maxNoteLength {
			return models.MovementRequest{}, validationError(fmt.Sprintf("Note must be at most %d characters", maxNoteLength))
		}
		req.Note = &note
	}
	return req, nil
}

// listedQty looks sku up in the rows currently displayed
func (v *View) listedQty(sku string) (int, bool) {
	for _, item := range v.items.Snapshot().Items {
		if item.SKU == sku {
			return item.Qty, true
		}
	}
	return 0, false
}

func (v *View) commandSucceeded(source string, resp *models.MessageResponse, fallback string) {
	text := fallback
	if resp != nil && resp.Message != "" {
		text = resp.Message
	}
	v.notifications.Notify(notify.Succeeded(source, text))
	v.channel.Bump()
}

// commandFailed notifies the user unless the session is already handling an
// auth failure, and returns err unchanged
func (v *View) commandFailed(source, title string, err error) error {
	switch apierror.KindOf(err) {
	case apierror.KindAuth:
		v.logger.Info("Command unauthorized, deferring to session", "source", source)
	case apierror.KindValidation:
		v.notifications.Notify(notify.Failed(source, title, apierror.MessageOf(err)))
	default:
		v.logger.Warn("Command failed", "source", source, "error", err)
		v.notifications.Notify(notify.FetchFailed(source))
	}
	return err
}

func validateName(name string) error {
	if name == "" {
		return validationError("Please enter item master")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return validationError(fmt.Sprintf("Item master must be at most %d characters", maxNameLength))
	}
	return nil
}

func validationError(message string) error {
	return apierror.Validation(message)
}
