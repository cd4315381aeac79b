// Package agent drives one search-and-open-product task against a single page.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop_replay/application/navigator"
	"shop_replay/application/resolver"
	"shop_replay/domain/entities"

	"github.com/sirupsen/logrus"
)

// DefaultResultsSettle is the pause after submitting a search
const DefaultResultsSettle = 3 * time.Second

// Agent resolves elements and acts on them through a recording navigator
type Agent struct {
	resolver *resolver.Resolver
	nav      *navigator.Navigator
	logger   *logrus.Logger
	settle   time.Duration
}

// New - creates an agent
func New(res *resolver.Resolver, nav *navigator.Navigator, logger *logrus.Logger) *Agent {
	return &Agent{
		resolver: res,
		nav:      nav,
		logger:   logger,
		settle:   DefaultResultsSettle,
	}
}

// SetResultsSettle changes the pause after a search is submitted
func (a *Agent) SetResultsSettle(d time.Duration) { a.settle = d }

func target(res resolver.Resolution) navigator.Target {
	return navigator.Target{
		Selector:    res.Locator.Selector,
		ElementType: res.Locator.ElementType,
		Intent:      res.Intent.Describe(),
		Element:     res.Element,
	}
}

func (a *Agent) resolve(ctx context.Context, intent entities.Intent) (resolver.Resolution, error) {
	res := a.resolver.Resolve(ctx, intent, a.nav.Page())
	if !res.Found {
		return res, res.Err()
	}
	a.logger.WithFields(logrus.Fields{
		"intent":   intent.Describe(),
		"selector": res.Locator.Selector,
		"method":   res.Locator.Method,
	}).Info("Element resolved")
	return res, nil
}

// Search - finds the search input, types query and submits it
func (a *Agent) Search(ctx context.Context, query string) (entities.Locator, error) {
	res, err := a.resolve(ctx, entities.SearchInput())
	if err != nil {
		return entities.Locator{}, err
	}

	t := target(res)
	if err := a.nav.Fill(ctx, t, query); err != nil {
		return res.Locator, err
	}
	if err := a.nav.Press(ctx, t, "Enter"); err != nil {
		return res.Locator, err
	}
	if err := a.nav.WaitForLoad(ctx); err != nil {
		return res.Locator, err
	}
	return res.Locator, a.nav.Sleep(ctx, a.settle)
}

// OpenProduct - clicks the image of the named product in the results
func (a *Agent) OpenProduct(ctx context.Context, productName string) (entities.Locator, error) {
	res, err := a.resolve(ctx, entities.ProductImage(productName))
	if err != nil {
		return entities.Locator{}, err
	}
	if err := a.nav.Click(ctx, target(res)); err != nil {
		return res.Locator, err
	}
	if err := a.nav.Sleep(ctx, a.nav.Timeouts().Settle); err != nil {
		return res.Locator, err
	}
	return res.Locator, a.nav.WaitForLoad(ctx)
}

// ClickButton - clicks the button or link labelled with one of synonyms
func (a *Agent) ClickButton(ctx context.Context, label string, synonyms ...string) (entities.Locator, error) {
	if len(synonyms) == 0 {
		synonyms = []string{label}
	}
	res, err := a.resolve(ctx, entities.ButtonByText(label, synonyms...))
	if err != nil {
		return entities.Locator{}, err
	}
	if err := a.nav.Click(ctx, target(res)); err != nil {
		return res.Locator, err
	}
	return res.Locator, a.nav.WaitForLoad(ctx)
}

// ExecuteTask - opens the task URL, searches for the query and opens the
// matching product. Failures are reported in the result, never returned.
func (a *Agent) ExecuteTask(ctx context.Context, task *entities.Task) entities.TaskResult {
	task.Status = entities.TaskStatusInProgress
	a.logger.WithFields(logrus.Fields{"task": task.ID, "url": task.URL, "query": task.Query}).Info("Task started")

	data := map[string]interface{}{}
	fail := func(err error) entities.TaskResult {
		return a.failure(task, err, data)
	}

	if task.URL != "" {
		if err := a.nav.Goto(ctx, task.URL); err != nil {
			return fail(err)
		}
	}

	search, err := a.Search(ctx, task.Query)
	if search.Selector != "" {
		data["search_selector"] = search.Selector
		data["search_method"] = string(search.Method)
		if search.SubmitSelector != "" {
			data["submit_selector"] = search.SubmitSelector
		}
	}
	if err != nil {
		return fail(err)
	}

	product, err := a.OpenProduct(ctx, task.Query)
	if product.Selector != "" {
		data["product_selector"] = product.Selector
		data["product_method"] = string(product.Method)
	}
	if err != nil {
		return fail(err)
	}

	if url, err := a.nav.Page().URL(ctx); err == nil {
		data["final_url"] = url
	}
	task.Status = entities.TaskStatusCompleted
	a.logger.WithField("task", task.ID).Info("Task completed")
	return entities.TaskResult{
		Status:  entities.ResultSuccess,
		Message: fmt.Sprintf("opened product %q", task.Query),
		Data:    data,
	}
}

func (a *Agent) failure(task *entities.Task, err error, data map[string]interface{}) entities.TaskResult {
	a.logger.WithError(err).WithField("task", task.ID).Warn("Task stopped")

	var notFound *resolver.NotFoundError
	var approval *navigator.ApprovalError
	switch {
	case errors.As(err, &approval):
		task.Status = entities.TaskStatusWaiting
		data["pending_action"] = approval.Action
		return entities.TaskResult{Status: entities.ResultError, Message: err.Error(), Data: data}
	case errors.As(err, &notFound) && notFound.Cause == nil:
		task.Status = entities.TaskStatusFailed
		data["attempts"] = notFound.Attempts
		return entities.TaskResult{Status: entities.ResultNotFound, Message: err.Error(), Data: data}
	}

	task.Status = entities.TaskStatusFailed
	return entities.TaskResult{Status: entities.ResultError, Message: err.Error(), Data: data}
}
