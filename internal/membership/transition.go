package membership

import (
	"github.com/google/uuid"

	"github.com/victornm/orgquiz/internal/domain"
	"github.com/victornm/orgquiz/internal/errors"
)

// Response is what a party does with a pending invitation.
type Response string

const (
	ResponseAccept  Response = "accept"
	ResponseDecline Response = "decline"
	ResponseCancel  Response = "cancel"
)

// side tells which party of inv the actor speaks for. A company invite is
// initiated by the company (its owner or the inviting user) and answered by
// the invited user; a membership request goes the other way round.
func side(inv *domain.Invitation, c *domain.Company, actorID uuid.UUID) (initiator, counterparty bool) {
	switch inv.Type {
	case domain.InvitationTypeCompanyInvite:
		return actorID == inv.InvitedByID || actorID == c.OwnerID, actorID == inv.InvitedUserID
	case domain.InvitationTypeUserRequest:
		return actorID == inv.InvitedUserID, actorID == c.OwnerID
	}
	return false, false
}

// Transition returns the terminal status the actor moves inv to by giving r.
// Only the counterparty may accept or decline, only the initiator may cancel.
func Transition(inv *domain.Invitation, c *domain.Company, actorID uuid.UUID, r Response) (domain.InvitationStatus, error) {
	initiator, counterparty := side(inv, c, actorID)

	switch r {
	case ResponseAccept:
		if counterparty {
			return domain.InvitationStatusAccepted, nil
		}
	case ResponseDecline:
		if counterparty {
			if inv.Type == domain.InvitationTypeUserRequest {
				return domain.InvitationStatusRejected, nil
			}
			return domain.InvitationStatusDeclined, nil
		}
	case ResponseCancel:
		if initiator {
			return domain.InvitationStatusCanceled, nil
		}
	default:
		return "", errors.InvalidArgument("Unknown invitation response %q.", r)
	}

	return "", errors.UnauthorizedAction("User is not allowed to %s this invitation.", r)
}
