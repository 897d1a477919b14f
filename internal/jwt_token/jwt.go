package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "tutorly/pkg/domain"
	dErrors "tutorly/pkg/domain-errors"
	"tutorly/pkg/platform/middleware/auth"
)

// Claims represents the JWT claims of a student access token.
type Claims struct {
	StudentID string `json:"student_id"`
	jwt.RegisteredClaims
}

// JWTService issues and validates student access tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	now        func() time.Time
}

func NewJWTService(signingKey string, issuer string, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
	}
}

func (s *JWTService) GenerateAccessToken(studentID id.StudentID, expiresIn time.Duration) (string, error) {
	if studentID.IsNil() {
		return "", dErrors.New(dErrors.CodeBadRequest, "student id is required")
	}
	now := s.now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		StudentID: studentID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   studentID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signedToken, nil
}

func (s *JWTService) ParseToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// ValidateToken satisfies auth.TokenValidator.
func (s *JWTService) ValidateToken(tokenString string) (*auth.Claims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{
		StudentID: claims.StudentID,
		JTI:       claims.ID,
	}, nil
}

// StudentOf reads the student id from a token without verifying it. Clients
// use it to learn who they act as; servers must use ParseToken.
func StudentOf(tokenString string) (id.StudentID, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return id.StudentID{}, dErrors.New(dErrors.CodeBadRequest, "malformed token")
	}
	studentID, err := id.ParseStudentID(claims.StudentID)
	if err != nil {
		return id.StudentID{}, dErrors.New(dErrors.CodeBadRequest, "token carries no student id")
	}
	return studentID, nil
}
