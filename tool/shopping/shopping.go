// Package shopping exposes a per-user, per-session shopping list as agent
// tools. The list lives in an injected *state.Store; the user and session
// come from the tool context of each call.
//
// Store failures (no list for the pair, duplicate or missing item) are not
// tool errors: their message is returned as the tool result so the model can
// relay it to the user.
package shopping

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Yaaesthetic/agno/core"
	"github.com/Yaaesthetic/agno/state"
	"github.com/Yaaesthetic/agno/tool"
)

// Product is one shopping list entry. Two products are the same entry when
// both name and quantity match.
type Product struct {
	Name     string `json:"product_name"`
	Quantity int    `json:"quantity"`
}

func (p Product) String() string {
	return fmt.Sprintf("{product_name: %s, quantity: %d}", p.Name, p.Quantity)
}

type itemArgs struct {
	ProductName string `json:"product_name" jsonschema:"required,minLength=1,description=Name of the product"`
	Quantity    int    `json:"quantity" jsonschema:"required,minimum=1,description=How many units"`
}

func (a itemArgs) product() Product {
	return Product{Name: a.ProductName, Quantity: a.Quantity}
}

type noArgs struct{}

// Toolkit binds the shopping tools to a store.
type Toolkit struct {
	store *state.Store[Product]
}

// NewToolkit creates a toolkit over store.
func NewToolkit(store *state.Store[Product]) *Toolkit {
	return &Toolkit{store: store}
}

// Store returns the backing store.
func (k *Toolkit) Store() *state.Store[Product] { return k.store }

// Tools returns add_item, remove_item, get_shopping_list and get_count.
func (k *Toolkit) Tools() []tool.Tool {
	return []tool.Tool{
		tool.NewTypedTool("add_item", "Add a product with its quantity to the current user's shopping list.", k.addItem),
		tool.NewTypedTool("remove_item", "Remove a product with its quantity from the current user's shopping list.", k.removeItem),
		tool.NewTypedTool("get_shopping_list", "Return the current user's shopping list for this session.", k.getList),
		tool.NewTypedTool("get_count", "Return how many items the current user has added minus removed across sessions.", k.getCount),
	}
}

func (k *Toolkit) addItem(tc *core.ToolContext, args itemArgs) (any, error) {
	item := args.product()

	if _, err := k.store.Add(tc.UserID(), tc.SessionID(), item); err != nil {
		return relay(tc, err)
	}

	tc.SetState("last_shopping_change", "add")

	return fmt.Sprintf("item %s is added to the shopping list", item), nil
}

func (k *Toolkit) removeItem(tc *core.ToolContext, args itemArgs) (any, error) {
	item := args.product()

	if _, err := k.store.Remove(tc.UserID(), tc.SessionID(), item); err != nil {
		return relay(tc, err)
	}

	tc.SetState("last_shopping_change", "remove")

	return fmt.Sprintf("Item %s removed from the shopping list", item), nil
}

func (k *Toolkit) getList(tc *core.ToolContext, _ noArgs) (any, error) {
	items, err := k.store.List(tc.UserID(), tc.SessionID())
	if err != nil {
		return relay(tc, err)
	}

	return FormatList(tc.UserID(), tc.SessionID(), items)
}

func (k *Toolkit) getCount(tc *core.ToolContext, _ noArgs) (any, error) {
	return k.store.Count(tc.UserID()), nil
}

// FormatList renders items as an indented JSON array under a heading.
func FormatList(userID, sessionID string, items []Product) (string, error) {
	if items == nil {
		items = []Product{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode shopping list: %w", err)
	}

	return fmt.Sprintf("Shopping list for user %s and session %s:\n%s", userID, sessionID, data), nil
}

// relay turns a store rejection into the tool's string result. Anything that
// is not a store error is a real failure.
func relay(tc *core.ToolContext, err error) (any, error) {
	var se *state.Error
	if !errors.As(err, &se) {
		return nil, err
	}

	tc.Logger().Info("shopping.rejected", "op", se.Op, "user_id", se.UserID, "session_id", se.SessionID, "reason", se.Err.Error())

	return se.Error(), nil
}
