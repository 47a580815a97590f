package runner

import (
	"context"
	"fmt"

	"github.com/aretw0/concierge/pkg/domain"
)

// ApprovalPolicy answers a pending gate.
type ApprovalPolicy func(ctx context.Context, out domain.Outcome) (domain.Approval, error)

// InteractiveApproval delegates the decision to the user through the handler.
func InteractiveApproval(handler IOHandler) ApprovalPolicy {
	return func(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
		approval, err := handler.Approve(ctx, out)
		if err != nil {
			return domain.Approval{}, err
		}
		if !approval.Approved && approval.Reason != "" {
			clean, err := SanitizeReason(approval.Reason)
			if err != nil {
				return domain.Approval{}, err
			}
			approval.Reason = clean
		}
		return approval, nil
	}
}

// AutoApprove allows everything.
func AutoApprove() ApprovalPolicy {
	return func(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
		return domain.Approval{Approved: true}, nil
	}
}

// AutoDeny rejects every gate with a fixed reason.
func AutoDeny(reason string) ApprovalPolicy {
	return func(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
		return domain.Approval{Reason: reason}, nil
	}
}

// AllowNodes approves gates on the listed nodes and defers the rest to next.
func AllowNodes(next ApprovalPolicy, nodes ...string) ApprovalPolicy {
	allowed := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		allowed[n] = true
	}
	return func(ctx context.Context, out domain.Outcome) (domain.Approval, error) {
		if allowed[out.Node] {
			return domain.Approval{Approved: true}, nil
		}
		if next == nil {
			return domain.Approval{}, fmt.Errorf("no approval policy for node %q", out.Node)
		}
		return next(ctx, out)
	}
}

// describeRequest renders the request a gate would serve.
func describeRequest(out domain.Outcome) string {
	if out.Request == nil {
		return fmt.Sprintf("'%s' is waiting for approval.", out.Node)
	}
	return fmt.Sprintf("'%s' wants to run %s with %s.", out.Node, out.Request.Capability, formatArgs(out.Request.Args))
}
